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

package types

import "fmt"

// FailureCode names the reason a request was refused.
type FailureCode string

const (
	// AlreadyJoined is sent for a join on a connection that joined already.
	AlreadyJoined FailureCode = "AlreadyJoined"

	// WrongSession is sent when the secret does not match the replica.
	WrongSession FailureCode = "WrongSession"

	// OtherConnection is sent to a connection replaced by a newer one of
	// the same replica.
	OtherConnection FailureCode = "OtherConnection"

	// MustJoin is sent for a push on a connection that did not join.
	MustJoin FailureCode = "MustJoin"

	// InvalidRequest is sent for a malformed join or push.
	InvalidRequest FailureCode = "InvalidRequest"

	// InternalFailure is sent when the server could not serve the request.
	InternalFailure FailureCode = "Internal"
)

// Failure is the body of an err message. It is also the error the client
// returns when the server refuses a request.
type Failure struct {
	Code    FailureCode `json:"code"`
	Message string      `json:"message,omitempty"`
}

// Error returns the error message.
func (f *Failure) Error() string {
	if f.Message == "" {
		return string(f.Code)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Is matches failures by code, so errors.Is(err, &Failure{Code: MustJoin})
// works on any failure with that code.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Code == f.Code
}
