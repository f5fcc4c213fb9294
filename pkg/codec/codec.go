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

// Package codec assembles the wire pipeline out of machines. Every layer is
// a two-sided machine: a Left input asks for encoding and yields a Right
// output, a Right input asks for decoding and yields a Left output.
package codec

import (
	"context"
	"errors"

	"github.com/anagni-team/anagni/pkg/machine"
)

var (
	// ErrMalformedText is returned when the JSON text cannot be parsed.
	ErrMalformedText = errors.New("malformed text")

	// ErrInvalidUTF8 is returned when decoded bytes are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8")

	// ErrUnexpectedOutput is returned when a layer answers a request with
	// the wrong side.
	ErrUnexpectedOutput = errors.New("unexpected codec output")
)

// Codec is a two-sided machine between a high representation H and a low
// representation L.
type Codec[H, L any] machine.Machine[machine.Sum[H, L], machine.Sum[H, L]]

// Layer returns the outer stage that turns the representation M of an inner
// codec into L. Encode requests pass through to the inner codec and its
// encoded output is lowered with down. Decode requests are lifted with up
// and handed to the inner codec, whose decoded value is surfaced as is.
func Layer[H, M, L any](
	down func(M) (L, error),
	up func(L) (M, error),
) machine.Machine[machine.Sum[machine.Sum[H, L], machine.Sum[H, M]], machine.Sum[machine.Sum[H, L], machine.Sum[H, M]]] {
	return func(_ context.Context, e machine.Sum[machine.Sum[H, L], machine.Sum[H, M]]) machine.Stream[machine.Sum[machine.Sum[H, L], machine.Sum[H, M]]] {
		if req, ok := e.Left(); ok {
			if h, ok := req.Left(); ok {
				return machine.Of(machine.Right[machine.Sum[H, L]](machine.Left[H, M](h)))
			}

			l, _ := req.Right()
			m, err := up(l)
			if err != nil {
				return machine.Fail[machine.Sum[machine.Sum[H, L], machine.Sum[H, M]]](err)
			}
			return machine.Of(machine.Right[machine.Sum[H, L]](machine.Right[H](m)))
		}

		res, _ := e.Right()
		if h, ok := res.Left(); ok {
			return machine.Of(machine.Left[machine.Sum[H, L], machine.Sum[H, M]](machine.Left[H, L](h)))
		}

		m, _ := res.Right()
		l, err := down(m)
		if err != nil {
			return machine.Fail[machine.Sum[machine.Sum[H, L], machine.Sum[H, M]]](err)
		}
		return machine.Of(machine.Left[machine.Sum[H, L], machine.Sum[H, M]](machine.Right[H](l)))
	}
}

// Wrap puts a layer around the inner codec.
func Wrap[H, M, L any](inner Codec[H, M], down func(M) (L, error), up func(L) (M, error)) Codec[H, L] {
	return Codec[H, L](machine.Loop(machine.Machine[machine.Sum[H, M], machine.Sum[H, M]](inner), Layer[H](down, up)))
}

// Encode runs an encode request through the codec.
func Encode[H, L any](ctx context.Context, c Codec[H, L], v H) (L, error) {
	var zero L
	out, err := machine.Single(ctx, c(ctx, machine.Left[H, L](v)))
	if err != nil {
		return zero, err
	}

	l, ok := out.Right()
	if !ok {
		return zero, ErrUnexpectedOutput
	}
	return l, nil
}

// Decode runs a decode request through the codec.
func Decode[H, L any](ctx context.Context, c Codec[H, L], b L) (H, error) {
	var zero H
	out, err := machine.Single(ctx, c(ctx, machine.Right[H](b)))
	if err != nil {
		return zero, err
	}

	h, ok := out.Left()
	if !ok {
		return zero, ErrUnexpectedOutput
	}
	return h, nil
}
