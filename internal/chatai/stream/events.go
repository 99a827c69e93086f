package stream

import (
	"context"
	"io"
	"iter"

	"github.com/longkey1/chatai/internal/chatai"
)

// Events returns the deltas carried by the event stream in r.
//
// Malformed data lines are passed to onMalformed (which may be nil) and
// skipped. A transport failure, including cancellation of ctx, is yielded
// once as the final element and is always a *chatai.StreamTransportError.
func Events(ctx context.Context, r io.Reader, onMalformed func(error)) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		dec := NewDecoder(r)
		for dec.Next() {
			if err := ctx.Err(); err != nil {
				yield(Delta{}, chatai.NewStreamTransportError(err))
				return
			}

			delta, ok, err := ParseLine(dec.Line())
			if err != nil {
				if onMalformed != nil {
					onMalformed(err)
				}
				continue
			}
			if !ok {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}

		if err := dec.Err(); err != nil {
			yield(Delta{}, err)
			return
		}
		if err := ctx.Err(); err != nil {
			yield(Delta{}, chatai.NewStreamTransportError(err))
		}
	}
}
