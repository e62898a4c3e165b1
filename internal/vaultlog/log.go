// Package vaultlog defines the narrow logging capability the vault consumes
// and a couple of concrete implementations. The vault core never assumes
// anything of a Logger beyond these two methods — no global singleton, no
// subclassing, no further interface surface.
package vaultlog

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger is the capability the vault requires of a logging sink.
type Logger interface {
	Info(msg string, ctx map[string]any)
	Error(msg string, ctx map[string]any)
}

// Noop discards every message. Useful as a default and in tests.
type Noop struct{}

func (Noop) Info(string, map[string]any)  {}
func (Noop) Error(string, map[string]any) {}

// Zerolog adapts a zerolog.Logger to the Logger capability.
type Zerolog struct {
	logger zerolog.Logger
}

// NewZerolog builds a structured JSON logger writing to w.
func NewZerolog(w io.Writer) Zerolog {
	return Zerolog{logger: zerolog.New(w).With().Timestamp().Logger()}
}

func (z Zerolog) Info(msg string, ctx map[string]any) {
	z.logger.Info().Fields(ctx).Msg(msg)
}

func (z Zerolog) Error(msg string, ctx map[string]any) {
	z.logger.Error().Fields(ctx).Msg(msg)
}
