// Package stdout implements a Sender that prints messages to standard
// output instead of submitting them, for dry runs and local testing.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Sender prints the would-be submission in a human-readable format.
type Sender struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Sender that writes to os.Stdout.
func New() *Sender {
	return &Sender{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Sender that writes to the given
// writer. This is useful for testing.
func NewWithWriter(w io.Writer) *Sender {
	return &Sender{writer: w}
}

// Send prints the envelope and raw message. It always succeeds.
func (s *Sender) Send(_ context.Context, source string, destinations []string, raw []byte) error {
	var b strings.Builder

	b.WriteString("========================================\n")
	b.WriteString(fmt.Sprintf("Envelope source: %s\n", source))
	b.WriteString(fmt.Sprintf("Envelope destinations: %s\n", strings.Join(destinations, ", ")))
	b.WriteString(fmt.Sprintf("Raw message (%d bytes):\n", len(raw)))
	b.Write(raw)
	b.WriteString("\n========================================\n")

	fmt.Fprint(s.writer, b.String())
	return nil
}

// Name returns the transport name.
func (s *Sender) Name() string {
	return "stdout"
}
