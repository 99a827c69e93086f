// Package stream turns the body of a streaming chat response into message
// deltas. A Decoder splits the raw byte stream into lines, ParseLine extracts
// the payload of each data line and Events composes the two.
package stream

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/longkey1/chatai/internal/chatai"
)

// Decoder yields the newline-delimited lines of a byte stream.
// Lines split across underlying reads are buffered until complete.
//
// Example usage:
//
//	dec := stream.NewDecoder(resp.Body)
//	for dec.Next() {
//		fmt.Println(dec.Line())
//	}
//	if err := dec.Err(); err != nil {
//		// err is a *chatai.StreamTransportError
//	}
type Decoder struct {
	r    *bufio.Reader
	line string
	err  error
	done bool
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next advances to the next line. It returns false at end-of-data or after
// a read error; call Err to tell them apart.
func (d *Decoder) Next() bool {
	if d.done {
		return false
	}

	s, err := d.r.ReadString('\n')
	if err != nil {
		d.done = true
		if !errors.Is(err, io.EOF) {
			// An incomplete line at a read failure is never emitted.
			d.err = chatai.NewStreamTransportError(err)
			return false
		}
		if s == "" {
			return false
		}
		d.line = strings.TrimSuffix(s, "\r")
		return true
	}

	d.line = strings.TrimSuffix(s[:len(s)-1], "\r")
	return true
}

// Line returns the most recent line without its terminator.
func (d *Decoder) Line() string {
	return d.line
}

// Err returns the transport error that ended the sequence, or nil when the
// stream ended normally.
func (d *Decoder) Err() error {
	return d.err
}
