// Package logging supplies the small injectable logger façade passed
// explicitly at construction to every component, in place of a global
// logger. It carries forward the teacher's plain fmt/log call-site style
// rather than adopting a structured-logging library the example corpus
// never reaches for on its own.
package logging

import (
	"fmt"
	"log"
	"os"
)

// Logger is the minimal surface every component depends on.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Std wraps a stdlib *log.Logger, tagging each line with its level the same
// way cmd/main.go tags its one-off report line with a fixed prefix.
type Std struct {
	l     *log.Logger
	debug bool
}

// NewStd builds a Std logger writing to stderr. debug controls whether
// Debugf lines are emitted at all.
func NewStd(debug bool) *Std {
	return &Std{l: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds), debug: debug}
}

func (s *Std) Debugf(format string, args ...any) {
	if !s.debug {
		return
	}
	s.l.Output(2, "DEBUG "+fmt.Sprintf(format, args...))
}

func (s *Std) Infof(format string, args ...any) {
	s.l.Output(2, "INFO  "+fmt.Sprintf(format, args...))
}

func (s *Std) Warnf(format string, args ...any) {
	s.l.Output(2, "WARN  "+fmt.Sprintf(format, args...))
}

func (s *Std) Errorf(format string, args ...any) {
	s.l.Output(2, "ERROR "+fmt.Sprintf(format, args...))
}

// Nop discards everything; useful as a default in tests.
type Nop struct{}

func (Nop) Debugf(string, ...any) {}
func (Nop) Infof(string, ...any)  {}
func (Nop) Warnf(string, ...any)  {}
func (Nop) Errorf(string, ...any) {}
