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

package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/anagni-team/anagni/api/types"
	api "github.com/anagni-team/anagni/api/v1"
	"github.com/anagni-team/anagni/internal/version"
	"github.com/anagni-team/anagni/pkg/codec"
)

// UserAgentKey is the metadata key carrying the agent of the client.
const UserAgentKey = "x-anagni-user-agent"

// ErrNotSealed is returned when the client seals its frames but the server
// does not.
var ErrNotSealed = errors.New("server does not seal frames")

// Conn is a connection to the server exchanging envelopes.
type Conn interface {
	Send(env *types.Envelope) error
	Recv() (*types.Envelope, error)
	Close() error
}

// Dialer opens a connection to the server at the address.
type Dialer func(ctx context.Context, addr string, opts *Options) (Conn, error)

// grpcConn is a Conn over the Connect stream of the replication service.
type grpcConn struct {
	cc     *grpc.ClientConn
	stream api.ReplicationConnectClient
	cancel context.CancelFunc
	stack  *codec.Stack[*types.Envelope]
}

// Dial opens a Connect stream to the server. The stream lives until Close,
// independently of the given context.
func Dial(ctx context.Context, addr string, opts *Options) (Conn, error) {
	creds := insecure.NewCredentials()
	if opts.CertFile != "" {
		c, err := credentials.NewClientTLSFromFile(opts.CertFile, opts.ServerNameOverride)
		if err != nil {
			return nil, fmt.Errorf("create client tls from file: %w", err)
		}
		creds = c
	}

	var clientSalt []byte
	if opts.SealSecret != "" {
		if err := opts.SealCipher.Validate(); err != nil {
			return nil, err
		}
		salt, err := codec.NewSalt()
		if err != nil {
			return nil, err
		}
		clientSalt = salt
	}

	cc, err := grpc.DialContext(
		ctx,
		addr,
		grpc.WithTransportCredentials(creds),
		grpc.WithStreamInterceptor(userAgentInterceptor),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	if clientSalt != nil {
		streamCtx = metadata.AppendToOutgoingContext(streamCtx, api.SealSaltKey, string(clientSalt))
	}
	stream, err := api.Connect(streamCtx, cc)
	if err != nil {
		cancel()
		_ = cc.Close()
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}

	sealer, err := newSealer(stream, opts, clientSalt)
	if err != nil {
		cancel()
		_ = cc.Close()
		return nil, err
	}

	return &grpcConn{
		cc:     cc,
		stream: stream,
		cancel: cancel,
		stack:  codec.NewStack[*types.Envelope](sealer),
	}, nil
}

// newSealer waits for the header of the server and returns the sealer keyed
// with the salts of both sides, or nil when the frames are not sealed.
func newSealer(stream api.ReplicationConnectClient, opts *Options, clientSalt []byte) (*codec.Sealer, error) {
	header, err := stream.Header()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if clientSalt == nil {
		return nil, nil
	}

	values := header.Get(api.SealSaltKey)
	if len(values) != 1 || len(values[0]) != codec.SaltSize {
		return nil, ErrNotSealed
	}

	return codec.NewSealer(
		[]byte(opts.SealSecret),
		opts.SealCipher,
		codec.ClientRole,
		codec.WithSalt(append(append([]byte(nil), clientSalt...), values[0]...)),
	)
}

func (c *grpcConn) Send(env *types.Envelope) error {
	data, err := c.stack.Encode(c.stream.Context(), env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Type, err)
	}
	return c.stream.Send(api.NewFrame(data))
}

func (c *grpcConn) Recv() (*types.Envelope, error) {
	frame, err := c.stream.Recv()
	if err != nil {
		return nil, err
	}

	env, err := c.stack.Decode(c.stream.Context(), frame.GetValue())
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if env == nil {
		return nil, fmt.Errorf("empty message: %w", codec.ErrMalformedText)
	}
	return env, nil
}

func (c *grpcConn) Close() error {
	_ = c.stream.CloseSend()
	c.cancel()
	return c.cc.Close()
}

func userAgentInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, UserAgentKey, "go-client/"+version.Version)
	return streamer(ctx, desc, cc, method, opts...)
}
