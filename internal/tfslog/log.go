// Package tfslog is the minimal structured-logging façade used across the
// core. Callers that already standardize on zerolog, logrus, or any other
// leveled logger can plug it in by implementing the four-method Logger
// interface; Std wraps log/slog as the zero-dependency default.
package tfslog

import (
	"log/slog"
	"os"
)

// Logger is the leveled logging contract used by the vdev driver, the SMR
// global GC, and the sector cache's heal path.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type nop struct{}

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop{} }

type std struct {
	l *slog.Logger
}

// Std returns a Logger backed by log/slog, writing text-formatted records
// to stderr.
func Std() Logger {
	return &std{l: slog.New(slog.NewTextHandler(os.Stderr, nil))}
}

func (s *std) Debug(msg string, kv ...any) { s.l.Debug(msg, kv...) }
func (s *std) Info(msg string, kv ...any)  { s.l.Info(msg, kv...) }
func (s *std) Warn(msg string, kv ...any)  { s.l.Warn(msg, kv...) }
func (s *std) Error(msg string, kv ...any) { s.l.Error(msg, kv...) }
