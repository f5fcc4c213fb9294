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

package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrNonceExhausted is returned once the sealing nonce has wrapped. The
	// sealer refuses to seal again under the same key.
	ErrNonceExhausted = errors.New("nonce space exhausted")

	// ErrOpen is returned when a sealed message cannot be authenticated.
	ErrOpen = errors.New("cannot open sealed message")

	// ErrEmptySecret is returned when a sealer is created without a secret.
	ErrEmptySecret = errors.New("empty seal secret")

	// ErrUnknownCipher is returned for an unsupported cipher name.
	ErrUnknownCipher = errors.New("unknown cipher")
)

// Cipher names an AEAD construction.
type Cipher string

const (
	// AESGCM is AES-256 in Galois/Counter Mode.
	AESGCM Cipher = "aes-256-gcm"

	// ChaCha20Poly1305 is the IETF ChaCha20-Poly1305 construction.
	ChaCha20Poly1305 Cipher = "chacha20-poly1305"
)

// Validate checks whether the cipher is supported.
func (c Cipher) Validate() error {
	switch c {
	case AESGCM, ChaCha20Poly1305:
		return nil
	}
	return fmt.Errorf("%s: %w", c, ErrUnknownCipher)
}

// Role is the side of the connection a sealer works for. Each direction is
// sealed under its own derived key.
type Role int

const (
	// ClientRole seals client to server traffic.
	ClientRole Role = iota

	// ServerRole seals server to client traffic.
	ServerRole
)

const (
	clientToServer = "anagni client to server"
	serverToClient = "anagni server to client"
)

// SaltSize is the size of the salt each side contributes to the keys of a
// connection.
const SaltSize = 16

// NewSalt returns a random salt of SaltSize bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	return salt, nil
}

// Sealer encrypts outgoing and decrypts incoming messages of one connection.
type Sealer struct {
	sealAEAD cipher.AEAD
	openAEAD cipher.AEAD

	salt         []byte
	initialNonce []byte

	mu        sync.Mutex
	nonce     []byte
	exhausted bool
}

// SealerOption configures a Sealer.
type SealerOption func(*Sealer)

// WithSalt mixes the salt into the derivation of the keys. Sealers of two
// connections sharing a secret seal under different keys as long as their
// salts differ.
func WithSalt(salt []byte) SealerOption {
	return func(s *Sealer) {
		s.salt = append([]byte(nil), salt...)
	}
}

// WithInitialNonce sets the counter the first seal increments from. By
// default the counter starts at a random value.
func WithInitialNonce(nonce []byte) SealerOption {
	return func(s *Sealer) {
		s.initialNonce = append([]byte(nil), nonce...)
	}
}

// NewSealer derives the directional keys from the shared secret and
// returns a Sealer for the given role.
func NewSealer(secret []byte, c Cipher, role Role, opts ...SealerOption) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	sealInfo, openInfo := clientToServer, serverToClient
	if role == ServerRole {
		sealInfo, openInfo = serverToClient, clientToServer
	}

	s := &Sealer{}
	for _, opt := range opts {
		opt(s)
	}

	sealAEAD, err := newAEAD(secret, s.salt, c, sealInfo)
	if err != nil {
		return nil, err
	}
	openAEAD, err := newAEAD(secret, s.salt, c, openInfo)
	if err != nil {
		return nil, err
	}
	s.sealAEAD, s.openAEAD = sealAEAD, openAEAD

	s.nonce = make([]byte, sealAEAD.NonceSize())
	if s.initialNonce != nil {
		copy(s.nonce, s.initialNonce)
	} else if _, err := io.ReadFull(rand.Reader, s.nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	return s, nil
}

func newAEAD(secret, salt []byte, c Cipher, info string) (cipher.AEAD, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	switch c {
	case AESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("new cipher: %w", err)
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	}

	return nil, fmt.Errorf("%s: %w", c, ErrUnknownCipher)
}

// Seal increments the nonce and returns nonce || ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exhausted {
		return nil, ErrNonceExhausted
	}
	if increment(s.nonce) {
		s.exhausted = true
		return nil, ErrNonceExhausted
	}

	size := len(s.nonce)
	out := make([]byte, size, size+len(plaintext)+s.sealAEAD.Overhead())
	copy(out, s.nonce)
	return s.sealAEAD.Seal(out, s.nonce, plaintext, nil), nil
}

// Open authenticates and decrypts a message produced by the peer's Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	size := s.openAEAD.NonceSize()
	if len(sealed) < size+s.openAEAD.Overhead() {
		return nil, fmt.Errorf("%w: message too short", ErrOpen)
	}

	plaintext, err := s.openAEAD.Open(nil, sealed[:size], sealed[size:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrOpen, err)
	}
	return plaintext, nil
}

// increment adds one to the big-endian counter and reports whether it
// carried out of the most significant byte.
func increment(nonce []byte) bool {
	for i := len(nonce) - 1; i >= 0; i-- {
		nonce[i]++
		if nonce[i] != 0 {
			return false
		}
	}
	return true
}

// Seal wraps a byte codec so that it produces sealed messages.
func Seal[H any](inner Codec[H, []byte], s *Sealer) Codec[H, []byte] {
	return Wrap(inner, s.Seal, s.Open)
}
