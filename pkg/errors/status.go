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

// Package errors provides errors with structured statuses and codes. The
// numeric statuses match gRPC codes so that they can be sent over the wire
// as they are.
package errors

import "fmt"

// StatusCode is the status of an error.
type StatusCode int

const (
	// CodeInvalidArgument indicates malformed input.
	CodeInvalidArgument StatusCode = 3

	// CodeNotFound indicates a missing resource.
	CodeNotFound StatusCode = 5

	// CodeAlreadyExists indicates that the resource exists already.
	CodeAlreadyExists StatusCode = 6

	// CodePermissionDenied indicates that the caller may not do the operation.
	CodePermissionDenied StatusCode = 7

	// CodeFailedPrecondition indicates that the system is not in the state
	// required for the operation.
	CodeFailedPrecondition StatusCode = 9

	// CodeAborted indicates that the operation was interrupted by a
	// concurrent one.
	CodeAborted StatusCode = 10

	// CodeInternal indicates a broken invariant.
	CodeInternal StatusCode = 13

	// CodeUnavailable indicates that the service is temporarily unavailable.
	CodeUnavailable StatusCode = 14

	// CodeUnauthenticated indicates missing or invalid credentials.
	CodeUnauthenticated StatusCode = 16
)

// String returns the string representation of the status.
func (c StatusCode) String() string {
	switch c {
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeNotFound:
		return "not_found"
	case CodeAlreadyExists:
		return "already_exists"
	case CodePermissionDenied:
		return "permission_denied"
	case CodeFailedPrecondition:
		return "failed_precondition"
	case CodeAborted:
		return "aborted"
	case CodeInternal:
		return "internal"
	case CodeUnavailable:
		return "unavailable"
	case CodeUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

// IsClientError reports whether the status blames the caller.
func (c StatusCode) IsClientError() bool {
	switch c {
	case CodeInvalidArgument, CodeNotFound, CodeAlreadyExists,
		CodePermissionDenied, CodeFailedPrecondition, CodeAborted,
		CodeUnauthenticated:
		return true
	default:
		return false
	}
}
