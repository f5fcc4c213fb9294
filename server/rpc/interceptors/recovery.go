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

package interceptors

import (
	"context"

	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anagni-team/anagni/server/logging"
)

// NewRecoveryInterceptor returns the unary and stream interceptors turning a
// panic of a handler into an Internal status.
func NewRecoveryInterceptor() (grpc.UnaryServerInterceptor, grpc.StreamServerInterceptor) {
	opt := grpcrecovery.WithRecoveryHandlerContext(func(ctx context.Context, p interface{}) error {
		logging.From(ctx).Errorf("panic in handler: %v", p)
		return status.Errorf(codes.Internal, "panic: %v", p)
	})
	return grpcrecovery.UnaryServerInterceptor(opt), grpcrecovery.StreamServerInterceptor(opt)
}
