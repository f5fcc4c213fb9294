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

package logging

import (
	"context"
	"errors"
	"io"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RPCLogLevel is the severity an RPC outcome is logged with.
type RPCLogLevel int

// RPC log levels.
const (
	RPCLogDebug RPCLogLevel = iota
	RPCLogInfo
	RPCLogWarn
	RPCLogError
)

// String returns the string representation of RPCLogLevel.
func (l RPCLogLevel) String() string {
	switch l {
	case RPCLogDebug:
		return "debug"
	case RPCLogInfo:
		return "info"
	case RPCLogError:
		return "error"
	}
	return "warn"
}

// toRPCLogLevel classifies the error a stream ended with.
func toRPCLogLevel(err error) RPCLogLevel {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return RPCLogDebug
	}

	st, ok := status.FromError(err)
	if !ok {
		return RPCLogWarn
	}

	switch st.Code() {
	case codes.OK, codes.Canceled:
		return RPCLogDebug
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.Aborted:
		return RPCLogInfo
	case codes.Internal, codes.DataLoss, codes.Unknown, codes.Unavailable, codes.DeadlineExceeded:
		return RPCLogError
	default:
		return RPCLogWarn
	}
}

// LogRPCStreamError logs the error a stream ended with at the level
// matching its code.
func LogRPCStreamError(logger Logger, method string, duration time.Duration, err error) {
	const template = "RPC : stream %q %s => %q"
	switch toRPCLogLevel(err) {
	case RPCLogDebug:
		logger.Debugf(template, method, duration, err)
	case RPCLogInfo:
		logger.Infof(template, method, duration, err)
	case RPCLogError:
		logger.Errorf(template, method, duration, err)
	default:
		logger.Warnf(template, method, duration, err)
	}
}

// LogRPCStreamSuccess logs a stream that ended without error.
func LogRPCStreamSuccess(logger Logger, method string, duration time.Duration) {
	logger.Debugf("RPC : stream %q %s", method, duration)
}
