package batch

import (
	"context"

	"github.com/sourcegraph/conc/iter"
)

// Window applies fn to every input, size items at a time: all calls in a
// window run concurrently and the next window starts only once the current
// one has finished. Results keep input order. A cancelled context stops
// further windows; unprocessed slots keep their zero value.
func Window[T, R any](ctx context.Context, input []T, size int, fn func(context.Context, T) R) []R {
	out := make([]R, len(input))
	if len(input) == 0 {
		return out
	}
	start := 0
	for _, chunk := range Chunks(input, size) {
		if ctx.Err() != nil {
			break
		}
		mapper := iter.Mapper[T, R]{MaxGoroutines: len(chunk)}
		results := mapper.Map(chunk, func(item *T) R {
			return fn(ctx, *item)
		})
		copy(out[start:], results)
		start += len(chunk)
	}
	return out
}

// Chunks splits input into consecutive slices of at most size elements.
func Chunks[T any](input []T, size int) [][]T {
	if size <= 0 {
		size = len(input)
	}
	var out [][]T
	for start := 0; start < len(input); start += size {
		out = append(out, input[start:min(start+size, len(input))])
	}
	return out
}
