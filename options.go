// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package pngchunk

import (
	"fmt"

	"go.uber.org/zap"
)

// Options defines settings for Decoder and Encoder.
type Options struct {
	Logger *zap.Logger

	// MaxLength is the largest payload length accepted.
	MaxLength uint32

	// SkipCorrupt makes Decoder skip chunks with checksum mismatch instead of failing.
	SkipCorrupt bool
}

// defaultOptions returns default initial values.
func defaultOptions() Options {
	return Options{
		MaxLength: MaxLength,
		Logger:    zap.NewNop(),
	}
}

// OptionFunc allows setting Decoder and Encoder options.
type OptionFunc func(*Options) error

// WithMaxLength limits the payload length of chunks read or written.
//
// Decoder checks the limit before allocating memory for the payload, so it
// can be used to bound memory usage on untrusted input.
func WithMaxLength(length uint32) OptionFunc {
	return func(opt *Options) error {
		if length == 0 || length > MaxLength {
			return fmt.Errorf("max length should be in range [1, %d]: %d", MaxLength, length)
		}

		opt.MaxLength = length

		return nil
	}
}

// WithSkipCorrupt makes Decoder skip chunks which fail checksum verification.
func WithSkipCorrupt(skip bool) OptionFunc {
	return func(opt *Options) error {
		opt.SkipCorrupt = skip

		return nil
	}
}

// WithLogger sets logger for Decoder and Encoder.
func WithLogger(logger *zap.Logger) OptionFunc {
	return func(opt *Options) error {
		if logger == nil {
			return fmt.Errorf("logger should be set")
		}

		opt.Logger = logger

		return nil
	}
}

func buildOptions(opts []OptionFunc) (Options, error) {
	opt := defaultOptions()

	for _, o := range opts {
		if err := o(&opt); err != nil {
			return Options{}, err
		}
	}

	return opt, nil
}
