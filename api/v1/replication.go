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

// Package v1 describes the gRPC replication service. Frames are
// google.protobuf.BytesValue messages carrying the output of the codec
// stack, so the service needs no generated code.
package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified name of the service.
	ServiceName = "anagni.v1.Replication"

	// ConnectMethod is the full method name of the Connect stream.
	ConnectMethod = "/" + ServiceName + "/Connect"

	// SealSaltKey is the binary metadata key carrying the salt of each side
	// of a sealed connection: in the request metadata for the client, in the
	// response header for the server. The keys of the connection are
	// derived from the client salt followed by the server salt.
	SealSaltKey = "x-anagni-seal-salt-bin"
)

// Frame is one message of a Connect stream.
type Frame = wrapperspb.BytesValue

// NewFrame wraps encoded bytes.
func NewFrame(data []byte) *Frame {
	return wrapperspb.Bytes(data)
}

// ReplicationServer is the server API of the replication service.
type ReplicationServer interface {
	// Connect opens a bidirectional stream of frames for one connection.
	Connect(stream ReplicationConnectServer) error
}

// ReplicationConnectServer is the server side of a Connect stream.
type ReplicationConnectServer interface {
	Send(*Frame) error
	Recv() (*Frame, error)
	grpc.ServerStream
}

type replicationConnectServer struct {
	grpc.ServerStream
}

func (s *replicationConnectServer) Send(f *Frame) error {
	return s.ServerStream.SendMsg(f)
}

func (s *replicationConnectServer) Recv() (*Frame, error) {
	f := new(Frame)
	if err := s.ServerStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}

func connectHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ReplicationServer).Connect(&replicationConnectServer{stream})
}

// ServiceDesc is the grpc.ServiceDesc of the replication service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReplicationServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       connectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "anagni/v1/replication.proto",
}

// RegisterReplicationServer registers the service on the gRPC server.
func RegisterReplicationServer(s grpc.ServiceRegistrar, srv ReplicationServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ReplicationConnectClient is the client side of a Connect stream.
type ReplicationConnectClient interface {
	Send(*Frame) error
	Recv() (*Frame, error)
	grpc.ClientStream
}

type replicationConnectClient struct {
	grpc.ClientStream
}

func (c *replicationConnectClient) Send(f *Frame) error {
	return c.ClientStream.SendMsg(f)
}

func (c *replicationConnectClient) Recv() (*Frame, error) {
	f := new(Frame)
	if err := c.ClientStream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Connect opens a Connect stream on the client connection.
func Connect(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (ReplicationConnectClient, error) {
	stream, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], ConnectMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &replicationConnectClient{stream}, nil
}
