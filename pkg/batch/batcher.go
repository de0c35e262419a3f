package batch

import "fmt"

// Split partitions items into consecutive groups of size. Every group holds
// exactly size items except the last, which holds the remainder. Items are
// neither reordered nor filtered.
func Split[I Item](items []I, size int) ([]Group[I], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGroupSize, size)
	}

	groups := make([]Group[I], 0, (len(items)+size-1)/size)
	for offset := 0; offset < len(items); offset += size {
		end := offset + size
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, Group[I]{
			Index:  len(groups),
			Offset: offset,
			Items:  items[offset:end:end],
		})
	}

	return groups, nil
}
