package batch

import (
	"errors"
	"fmt"
	"testing"
)

type testItem string

func (t testItem) ID() string { return string(t) }

func makeItems(n int) []testItem {
	items := make([]testItem, n)
	for i := range items {
		items[i] = testItem(fmt.Sprintf("item-%02d", i))
	}
	return items
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		size      int
		wantSizes []int
	}{
		{name: "empty", n: 0, size: 11, wantSizes: []int{}},
		{name: "single item", n: 1, size: 11, wantSizes: []int{1}},
		{name: "smaller than group", n: 10, size: 11, wantSizes: []int{10}},
		{name: "exact group", n: 11, size: 11, wantSizes: []int{11}},
		{name: "one over", n: 12, size: 11, wantSizes: []int{11, 1}},
		{name: "exact multiple", n: 22, size: 11, wantSizes: []int{11, 11}},
		{name: "remainder", n: 25, size: 11, wantSizes: []int{11, 11, 3}},
		{name: "all constellations", n: 88, size: 11, wantSizes: []int{11, 11, 11, 11, 11, 11, 11, 11}},
		{name: "group of one", n: 3, size: 1, wantSizes: []int{1, 1, 1}},
		{name: "pairs", n: 5, size: 2, wantSizes: []int{2, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := makeItems(tt.n)

			groups, err := Split(items, tt.size)
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}

			if len(groups) != len(tt.wantSizes) {
				t.Fatalf("len(groups) = %d, want %d", len(groups), len(tt.wantSizes))
			}

			next := 0
			for i, g := range groups {
				if g.Index != i {
					t.Errorf("groups[%d].Index = %d, want %d", i, g.Index, i)
				}
				if g.Offset != next {
					t.Errorf("groups[%d].Offset = %d, want %d", i, g.Offset, next)
				}
				if g.Len() != tt.wantSizes[i] {
					t.Errorf("groups[%d].Len() = %d, want %d", i, g.Len(), tt.wantSizes[i])
				}
				for _, item := range g.Items {
					if item != items[next] {
						t.Errorf("item at position %d = %s, want %s", next, item, items[next])
					}
					next++
				}
			}

			if next != tt.n {
				t.Errorf("groups cover %d items, want %d", next, tt.n)
			}
		})
	}
}

func TestSplit_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1, -11} {
		t.Run(fmt.Sprintf("size_%d", size), func(t *testing.T) {
			groups, err := Split(makeItems(5), size)
			if !errors.Is(err, ErrInvalidGroupSize) {
				t.Errorf("Split() error = %v, want ErrInvalidGroupSize", err)
			}
			if groups != nil {
				t.Errorf("Split() groups = %v, want nil", groups)
			}
		})
	}
}

func TestSplit_GroupsDoNotAlias(t *testing.T) {
	items := makeItems(4)
	groups, err := Split(items, 2)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	// appending to the first group must not overwrite the second one
	_ = append(groups[0].Items, testItem("intruder"))

	if groups[1].Items[0] != items[2] {
		t.Errorf("groups[1].Items[0] = %s, want %s", groups[1].Items[0], items[2])
	}
}
