package server

import (
	"time"

	"elg-gateway/partner"
	"elg-gateway/upstream"
)

// Context is the immutable state every connection worker shares: the
// partner key directory and the upstream translator are built once at
// startup and never mutated afterward, so no lock is needed to read them
// from concurrent goroutines. This replaces the teacher's pattern of
// attaching config/keys to a handler class as mutable class attributes —
// there is no handler class here, just a plain function taking Context by
// reference.
type Context struct {
	Partners    *partner.Directory
	Translator  *upstream.Translator
	ConnTimeout time.Duration
}
