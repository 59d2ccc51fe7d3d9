package domain

import "testing"

func TestNormalizePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		page, limit       int
		wantPage, wantLim int
	}{
		{"defaults", 0, 0, 1, DefaultPageLimit},
		{"negative page", -3, 10, 1, 10},
		{"over max", 2, 5000, 2, MaxPageLimit},
		{"unchanged", 4, 50, 4, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gotPage, gotLimit := NormalizePage(tt.page, tt.limit)
			if gotPage != tt.wantPage || gotLimit != tt.wantLim {
				t.Errorf("NormalizePage(%d, %d) = (%d, %d), want (%d, %d)",
					tt.page, tt.limit, gotPage, gotLimit, tt.wantPage, tt.wantLim)
			}
		})
	}
}

func TestNewPage_TotalPages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total, limit, want int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{45, 10, 5},
	}
	for _, tt := range tests {
		p := NewPage([]int{}, tt.total, 1, tt.limit)
		if p.TotalPages != tt.want {
			t.Errorf("total=%d limit=%d: TotalPages = %d, want %d", tt.total, tt.limit, p.TotalPages, tt.want)
		}
	}
}

func TestNewPage_NilItems(t *testing.T) {
	t.Parallel()

	p := NewPage[string](nil, 0, 1, 20)
	if p.Items == nil {
		t.Error("Items should be an empty slice, not nil")
	}
}

func TestOffset(t *testing.T) {
	t.Parallel()
	if got := Offset(3, 25); got != 50 {
		t.Errorf("Offset(3, 25) = %d, want 50", got)
	}
}
