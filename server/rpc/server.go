/*
 * Copyright 2026 The Anagni Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package rpc

import (
	"errors"
	"fmt"
	"math"
	"net"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	api "github.com/anagni-team/anagni/api/v1"
	"github.com/anagni-team/anagni/server/backend"
	"github.com/anagni-team/anagni/server/logging"
	"github.com/anagni-team/anagni/server/replication"
	"github.com/anagni-team/anagni/server/rpc/grpchelper"
	"github.com/anagni-team/anagni/server/rpc/interceptors"
)

// Server is a normal server that processes the logic requested by the client.
type Server struct {
	conf         *Config
	grpcServer   *grpc.Server
	healthServer *health.Server
	listener     net.Listener
}

// NewServer creates a new instance of Server.
func NewServer(conf *Config, be *backend.Backend, engine *replication.Engine) (*Server, error) {
	loggingInterceptor := grpchelper.NewLoggingInterceptor()
	accessUnary, accessStream := grpchelper.NewAccessLogInterceptors()
	defaultInterceptor := interceptors.NewDefaultInterceptor()
	recoveryUnary, recoveryStream := interceptors.NewRecoveryInterceptor()

	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(grpcmiddleware.ChainUnaryServer(
			loggingInterceptor.Unary(),
			accessUnary,
			be.Metrics.ServerMetrics().UnaryServerInterceptor(),
			recoveryUnary,
		)),
		grpc.StreamInterceptor(grpcmiddleware.ChainStreamServer(
			loggingInterceptor.Stream(),
			accessStream,
			be.Metrics.ServerMetrics().StreamServerInterceptor(),
			recoveryStream,
			defaultInterceptor.Stream(),
		)),
	}

	if conf.CertFile != "" && conf.KeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(conf.CertFile, conf.KeyFile)
		if err != nil {
			logging.DefaultLogger().Error(err)
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	opts = append(opts, grpc.MaxRecvMsgSize(int(conf.MaxRequestBytes)))
	opts = append(opts, grpc.MaxSendMsgSize(math.MaxInt32))
	opts = append(opts, grpc.MaxConcurrentStreams(math.MaxUint32))
	opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
		MaxConnectionAge:      conf.ParseMaxConnectionAge(),
		MaxConnectionAgeGrace: conf.ParseMaxConnectionAgeGrace(),
	}))

	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	api.RegisterReplicationServer(grpcServer, newReplicationServer(conf, engine))
	be.Metrics.ServerMetrics().InitializeMetrics(grpcServer)

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{
		conf:         conf,
		grpcServer:   grpcServer,
		healthServer: healthServer,
	}, nil
}

// Start starts this server by opening the rpc port.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.conf.Port))
	if err != nil {
		logging.DefaultLogger().Error(err)
		return err
	}
	if s.conf.MaxConnections > 0 {
		lis = netutil.LimitListener(lis, s.conf.MaxConnections)
	}

	logging.DefaultLogger().Infof("serving RPC on %d", s.conf.Port)
	s.Serve(lis)
	return nil
}

// Serve serves the RPC on the given listener in the background.
func (s *Server) Serve(lis net.Listener) {
	s.listener = lis

	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			if !errors.Is(err, grpc.ErrServerStopped) {
				logging.DefaultLogger().Error(err)
			}
		}
	}()
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown shuts down this server.
func (s *Server) Shutdown(graceful bool) {
	s.healthServer.Shutdown()

	if graceful {
		s.grpcServer.GracefulStop()
	} else {
		s.grpcServer.Stop()
	}
}
