// Package logging provides the per-component logger used across mujina,
// following the plain stdlib log.Logger style of the rest of this codebase.
package logging

import (
	"io"
	"log"
	"os"
)

var output io.Writer = os.Stderr

// SetOutput redirects all component loggers; used by tests.
func SetOutput(w io.Writer) {
	output = w
}

// New returns a logger prefixed with the given component name, e.g.
// "[backplane] ".
func New(component string) *log.Logger {
	return log.New(output, "["+component+"] ", log.LstdFlags)
}
