package mmdeploy

import "fmt"

// splitByCounts cuts the flat record array an engine returns into one
// sub-slice per input, in input order. counts must hold exactly n
// non-negative entries summing to len(flat).
func splitByCounts[T any](flat []T, counts []int32, n int) ([][]T, error) {
	if len(counts) != n {
		return nil, fmt.Errorf("%d counts for %d inputs", len(counts), n)
	}
	total := 0
	for i, c := range counts {
		if c < 0 {
			return nil, fmt.Errorf("negative count %d at input %d", c, i)
		}
		total += int(c)
	}
	if total != len(flat) {
		return nil, fmt.Errorf("counts sum to %d, engine returned %d records", total, len(flat))
	}

	out := make([][]T, n)
	off := 0
	for i, c := range counts {
		end := off + int(c)
		out[i] = flat[off:end:end]
		off = end
	}
	return out, nil
}

// counted adapts a flat+counts decoder to a per-input decoder.
func counted[T any](decode func(NativeResult) ([]T, []int32, error)) func(NativeResult) ([][]T, error) {
	return func(res NativeResult) ([][]T, error) {
		flat, counts, err := decode(res)
		if err != nil {
			return nil, err
		}
		return splitByCounts(flat, counts, res.Len)
	}
}

// single adapts a one-record-per-input decoder, checking the record count.
func single[T any](decode func(NativeResult) ([]T, error)) func(NativeResult) ([]T, error) {
	return func(res NativeResult) ([]T, error) {
		items, err := decode(res)
		if err != nil {
			return nil, err
		}
		if len(items) != res.Len {
			return nil, fmt.Errorf("engine returned %d records for %d inputs", len(items), res.Len)
		}
		return items, nil
	}
}
