package console

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
)

// Reader reads operator input one line at a time. It is shared between the
// startup prompts and the command loop so buffered input is never lost.
type Reader struct {
	mu sync.Mutex
	br *bufio.Reader
}

// NewReader wraps r
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadLine blocks until a full line is available and returns it without the
// line terminator. io.EOF is returned only when no further input exists; an
// empty line is returned as "" with a nil error.
func (r *Reader) ReadLine() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line, err := r.br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
