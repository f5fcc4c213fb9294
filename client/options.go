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
	"time"

	"go.uber.org/zap"

	"github.com/anagni-team/anagni/pkg/codec"
)

// DefaultJoinTimeout is the time Connect waits for the okay of the server.
const DefaultJoinTimeout = 10 * time.Second

// Option configures Options.
type Option func(*Options)

// Options configures how we set up the client.
type Options struct {
	// CertFile is the path to the certificate file. The connection is not
	// encrypted by TLS when it is empty.
	CertFile string

	// ServerNameOverride is the server name override.
	ServerNameOverride string

	// SealSecret is the shared secret of the seal layer. Frames are not
	// sealed when it is empty.
	SealSecret string

	// SealCipher is the AEAD of the seal layer.
	SealCipher codec.Cipher

	// JoinTimeout bounds the wait for the okay of the server.
	JoinTimeout time.Duration

	// EchoTimeout bounds the wait for the echo of an uploaded statement.
	// Zero disables it.
	EchoTimeout time.Duration

	// Dialer opens the connection to the server. It defaults to Dial.
	Dialer Dialer

	// Logger is the Logger of the client.
	Logger *zap.Logger
}

// WithCertFile configures the certificate file of the client.
func WithCertFile(certFile string) Option {
	return func(o *Options) { o.CertFile = certFile }
}

// WithServerNameOverride configures the server name override of the client.
func WithServerNameOverride(serverNameOverride string) Option {
	return func(o *Options) { o.ServerNameOverride = serverNameOverride }
}

// WithSeal configures the seal layer of the client.
func WithSeal(secret string, cipher codec.Cipher) Option {
	return func(o *Options) {
		o.SealSecret = secret
		o.SealCipher = cipher
	}
}

// WithJoinTimeout configures the join timeout of the client.
func WithJoinTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.JoinTimeout = timeout }
}

// WithEchoTimeout configures the echo timeout of the client.
func WithEchoTimeout(timeout time.Duration) Option {
	return func(o *Options) { o.EchoTimeout = timeout }
}

// WithDialer configures the dialer of the client.
func WithDialer(dialer Dialer) Option {
	return func(o *Options) { o.Dialer = dialer }
}

// WithLogger configures the Logger of the client.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}
