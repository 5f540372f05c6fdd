package pipeline

import (
	"context"
	"iter"

	"github.com/desertthunder/pngx/internal/png"
)

// stream exposes in as a lazy, single-pass sequence.
//
// Each pull blocks until an item arrives or in is closed. The sequence
// also ends, without an error, when ctx is done; ctx is checked again
// right before every yield.
func stream(ctx context.Context, in <-chan Item) iter.Seq2[string, png.Metadata] {
	return func(yield func(string, png.Metadata) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case it, ok := <-in:
				if !ok {
					return
				}
				if ctx.Err() != nil {
					return
				}
				if !yield(it.Path, it.Metadata) {
					return
				}
			}
		}
	}
}
