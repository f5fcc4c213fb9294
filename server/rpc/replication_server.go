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
	"context"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/anagni-team/anagni/api/types"
	api "github.com/anagni-team/anagni/api/v1"
	"github.com/anagni-team/anagni/pkg/codec"
	"github.com/anagni-team/anagni/server/logging"
	"github.com/anagni-team/anagni/server/replication"
)

type replicationServer struct {
	conf   *Config
	engine *replication.Engine
}

func newReplicationServer(conf *Config, engine *replication.Engine) *replicationServer {
	return &replicationServer{
		conf:   conf,
		engine: engine,
	}
}

type received struct {
	frame *api.Frame
	err   error
}

// Connect serves one connection: frames are decoded into envelopes and
// handed to the engine until the peer leaves or the engine closes the socket.
func (s *replicationServer) Connect(stream api.ReplicationConnectServer) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	sealer, err := s.newSealer(stream)
	if err != nil {
		return err
	}
	stack := codec.NewStack[*types.Envelope](sealer)

	sock := newSocket(ctx, cancel, stream, stack)
	conn := s.engine.Connect(sock)
	logger := logging.From(ctx).With(logging.ConnField(string(conn)))
	defer func() {
		s.engine.Disconnect(conn)
		sock.Close()
	}()

	frames := make(chan received)
	go func() {
		for {
			frame, err := stream.Recv()
			select {
			case frames <- received{frame: frame, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		var r received
		select {
		case <-ctx.Done():
			if err := stream.Context().Err(); err != nil {
				return err
			}
			return status.Error(codes.Aborted, "connection closed by server")
		case r = <-frames:
		}
		if r.err != nil {
			return r.err
		}

		env, err := stack.Decode(ctx, r.frame.GetValue())
		if err != nil {
			logger.Infof("decode frame: %v", err)
			return fmt.Errorf("decode frame: %w", err)
		}
		if env == nil {
			return status.Error(codes.InvalidArgument, "empty message")
		}

		if err := s.engine.Handle(ctx, conn, env); err != nil {
			return err
		}
	}
}

// newSealer answers the seal salt of the client with the salt of the server
// and returns the sealer keyed with both. The header is sent even when the
// frames are not sealed, so that clients never wait for it.
func (s *replicationServer) newSealer(stream api.ReplicationConnectServer) (*codec.Sealer, error) {
	if s.conf.SealSecret == "" {
		if err := stream.SendHeader(metadata.MD{}); err != nil {
			return nil, err
		}
		return nil, nil
	}

	md, _ := metadata.FromIncomingContext(stream.Context())
	values := md.Get(api.SealSaltKey)
	if len(values) != 1 || len(values[0]) != codec.SaltSize {
		return nil, status.Error(codes.InvalidArgument, "missing seal salt")
	}

	serverSalt, err := codec.NewSalt()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if err := stream.SendHeader(metadata.Pairs(api.SealSaltKey, string(serverSalt))); err != nil {
		return nil, err
	}

	sealer, err := s.conf.NewSealer(append([]byte(values[0]), serverSalt...))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return sealer, nil
}
