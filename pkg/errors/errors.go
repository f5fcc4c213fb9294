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

package errors

import (
	"errors"
	"fmt"
)

// StatusError is an error carrying a status and a machine readable code.
type StatusError interface {
	error
	Status() StatusCode
	Code() string
	WithCode(code string) StatusError
}

type statusError struct {
	err    error
	status StatusCode
	code   string
}

// Error returns the error message.
func (e statusError) Error() string {
	return e.err.Error()
}

// Status returns the error status.
func (e statusError) Status() StatusCode {
	return e.status
}

// Code returns the machine readable code of the error.
func (e statusError) Code() string {
	return e.code
}

// Unwrap returns the underlying error.
func (e statusError) Unwrap() error {
	return e.err
}

// WithCode returns a copy of the error with the given code.
func (e statusError) WithCode(code string) StatusError {
	return statusError{err: e.err, status: e.status, code: code}
}

func newStatusError(message string, status StatusCode) StatusError {
	return statusError{err: errors.New(message), status: status}
}

// InvalidArgument creates an error for malformed input.
func InvalidArgument(message string) StatusError {
	return newStatusError(message, CodeInvalidArgument)
}

// NotFound creates an error for a missing resource.
func NotFound(message string) StatusError {
	return newStatusError(message, CodeNotFound)
}

// AlreadyExists creates an error for a resource that exists already.
func AlreadyExists(message string) StatusError {
	return newStatusError(message, CodeAlreadyExists)
}

// PermissionDenied creates an error for a caller that may not do the
// operation.
func PermissionDenied(message string) StatusError {
	return newStatusError(message, CodePermissionDenied)
}

// FailedPrecond creates an error for an operation attempted in the wrong
// state.
func FailedPrecond(message string) StatusError {
	return newStatusError(message, CodeFailedPrecondition)
}

// Aborted creates an error for an operation interrupted by a concurrent
// one, such as a session taken over by another connection.
func Aborted(message string) StatusError {
	return newStatusError(message, CodeAborted)
}

// Unauthenticated creates an error for missing or invalid credentials.
func Unauthenticated(message string) StatusError {
	return newStatusError(message, CodeUnauthenticated)
}

// Internal creates an error for a broken invariant.
func Internal(message string) StatusError {
	return newStatusError(message, CodeInternal)
}

// Unavailable creates an error for a temporarily unavailable service.
func Unavailable(message string) StatusError {
	return newStatusError(message, CodeUnavailable)
}

// StatusOf returns the status of the first StatusError in the chain, or 0.
func StatusOf(err error) StatusCode {
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status()
	}
	return 0
}

// CodeOf returns the code of the first StatusError in the chain, or "".
func CodeOf(err error) string {
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code()
	}
	return ""
}

// IsStatus reports whether the error has the given status.
func IsStatus(err error, status StatusCode) bool {
	return StatusOf(err) == status
}

// Wrap annotates err with a message, keeping it in the chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
