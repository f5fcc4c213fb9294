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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/anagni-team/anagni/api/types"
	api "github.com/anagni-team/anagni/api/v1"
	"github.com/anagni-team/anagni/pkg/codec"
)

// ErrSocketClosed is returned when sending on a closed socket.
var ErrSocketClosed = errors.New("socket closed")

// socket adapts a Connect stream to the engine. Sends from the drain loop
// and the request handler are serialized on the stream.
type socket struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream api.ReplicationConnectServer
	stack  *codec.Stack[*types.Envelope]

	mu     sync.Mutex
	closed atomic.Bool
}

func newSocket(
	ctx context.Context,
	cancel context.CancelFunc,
	stream api.ReplicationConnectServer,
	stack *codec.Stack[*types.Envelope],
) *socket {
	return &socket{
		ctx:    ctx,
		cancel: cancel,
		stream: stream,
		stack:  stack,
	}
}

// Send encodes the envelope and writes it on the stream.
func (s *socket) Send(env *types.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return ErrSocketClosed
	}

	data, err := s.stack.Encode(s.ctx, env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Type, err)
	}
	if err := s.stream.Send(api.NewFrame(data)); err != nil {
		return fmt.Errorf("send %s: %w", env.Type, err)
	}
	return nil
}

// Close stops the stream handler. Sends after Close fail. Close does not
// wait for a send in progress.
func (s *socket) Close() {
	s.closed.Store(true)
	s.cancel()
}
