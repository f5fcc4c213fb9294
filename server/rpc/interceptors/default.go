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

// Package interceptors provides the gRPC interceptors of the RPC server.
package interceptors

import (
	gotime "time"

	"google.golang.org/grpc"

	"github.com/anagni-team/anagni/server/logging"
)

// DefaultInterceptor logs the outcome of every stream and converts the
// error it ended with into a gRPC status.
type DefaultInterceptor struct{}

// NewDefaultInterceptor creates a new instance of DefaultInterceptor.
func NewDefaultInterceptor() *DefaultInterceptor {
	return &DefaultInterceptor{}
}

// Stream creates a stream server interceptor for default.
func (i *DefaultInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		reqLogger := logging.From(ss.Context())

		start := gotime.Now()
		err := ToStatusError(handler(srv, ss))
		if err != nil {
			logging.LogRPCStreamError(reqLogger, info.FullMethod, gotime.Since(start), err)
			return err
		}

		logging.LogRPCStreamSuccess(reqLogger, info.FullMethod, gotime.Since(start))
		return nil
	}
}
