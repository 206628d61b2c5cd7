package page

import "testing"

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 0},
	}

	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.size); got != tt.want {
			t.Fatalf("TotalPages(%d,%d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestNewNeverReturnsNilItems(t *testing.T) {
	p := New[string](nil, 0, Params{Page: 1, Size: 20})

	if p.Items == nil {
		t.Fatal("items must be an empty slice so it encodes as []")
	}
}

func TestOffset(t *testing.T) {
	p := Params{Page: 3, Size: 25}
	if p.Offset() != 50 || p.Limit() != 25 {
		t.Fatalf("offset=%d limit=%d", p.Offset(), p.Limit())
	}
}

func TestOffsetAtMaxPageFitsInt32(t *testing.T) {
	off := Params{Page: MaxPage, Size: MaxSize}.Offset()
	if off <= 0 || off > 1<<31-1 {
		t.Fatalf("offset = %d", off)
	}
}
