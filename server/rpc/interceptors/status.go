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
	"errors"
	"io"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anagni-team/anagni/pkg/codec"
	pkgerrors "github.com/anagni-team/anagni/pkg/errors"
)

// statusCodes maps the statuses of pkg/errors to gRPC codes.
var statusCodes = map[pkgerrors.StatusCode]codes.Code{
	pkgerrors.CodeInvalidArgument:    codes.InvalidArgument,
	pkgerrors.CodeNotFound:           codes.NotFound,
	pkgerrors.CodeAlreadyExists:      codes.AlreadyExists,
	pkgerrors.CodePermissionDenied:   codes.PermissionDenied,
	pkgerrors.CodeFailedPrecondition: codes.FailedPrecondition,
	pkgerrors.CodeAborted:            codes.Aborted,
	pkgerrors.CodeInternal:           codes.Internal,
	pkgerrors.CodeUnavailable:        codes.Unavailable,
	pkgerrors.CodeUnauthenticated:    codes.Unauthenticated,
}

// ToStatusError returns a status.Error from the given logic error. If an
// error occurs while serving a stream, a gRPC status error should be returned
// so that the client can know more about the status of the request.
func ToStatusError(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	if errors.Is(err, codec.ErrMalformedText) ||
		errors.Is(err, codec.ErrInvalidUTF8) ||
		errors.Is(err, codec.ErrOpen) {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	if errors.Is(err, codec.ErrNonceExhausted) {
		return status.Error(codes.ResourceExhausted, err.Error())
	}

	if code, ok := statusCodes[pkgerrors.StatusOf(err)]; ok {
		return status.Error(code, err.Error())
	}

	return status.Error(codes.Internal, err.Error())
}
