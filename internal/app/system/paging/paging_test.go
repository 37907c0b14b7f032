package paging

import (
	"net/http/httptest"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTrimPage(t *testing.T) {
	tests := []struct {
		name     string
		rows     int
		before   string
		after    string
		wantLen  int
		wantPrev bool
		wantNext bool
	}{
		{"first page, short", 3, "", "", 3, false, false},
		{"first page, extra row", PageSize + 1, "", "", PageSize, false, true},
		{"forward, extra row", PageSize + 1, "", "c", PageSize, true, true},
		{"forward, last page", 3, "", "c", 3, true, false},
		{"backward, extra row", PageSize + 1, "c", "", PageSize, true, true},
		{"backward, first page", 3, "c", "", 3, false, true},
		{"empty", 0, "", "", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([]int, tt.rows)
			got := TrimPage(&rows, tt.before, tt.after)
			if len(rows) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(rows), tt.wantLen)
			}
			if got.HasPrev != tt.wantPrev || got.HasNext != tt.wantNext {
				t.Errorf("result = %+v, want prev=%v next=%v", got, tt.wantPrev, tt.wantNext)
			}
		})
	}
}

func TestConfigureKeyset(t *testing.T) {
	tests := []struct {
		name      string
		before    string
		after     string
		wantDir   Direction
		wantOrder int
	}{
		{"first page", "", "", Forward, 1},
		{"after", "", "x", Forward, 1},
		{"before", "x", "", Backward, -1},
		{"before wins", "x", "y", Backward, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfigureKeyset(tt.before, tt.after)
			if got.Direction != tt.wantDir || got.SortOrder != tt.wantOrder {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestKeysetWindow_RoundTrip(t *testing.T) {
	rows := []struct {
		Key string
		ID  primitive.ObjectID
	}{
		{"anand", primitive.NewObjectID()},
		{"bhavani", primitive.NewObjectID()},
	}
	_, next := BuildCursors(rows,
		func(r struct {
			Key string
			ID  primitive.ObjectID
		}) string {
			return r.Key
		},
		func(r struct {
			Key string
			ID  primitive.ObjectID
		}) primitive.ObjectID {
			return r.ID
		})
	if next == "" {
		t.Fatal("expected a next cursor")
	}
	cfg := ConfigureKeyset("", next)
	if cfg.Cursor == nil {
		t.Fatal("cursor did not decode")
	}
	if cfg.Cursor.CI != "bhavani" || cfg.Cursor.ID != rows[1].ID {
		t.Errorf("cursor = %+v", cfg.Cursor)
	}
	if cfg.KeysetWindow("name_ci") == nil {
		t.Error("expected a window filter")
	}
	if (KeysetConfig{}).KeysetWindow("name_ci") != nil {
		t.Error("no cursor should give no window")
	}
}

func TestReverse(t *testing.T) {
	rows := []int{1, 2, 3, 4}
	Reverse(rows)
	for i, want := range []int{4, 3, 2, 1} {
		if rows[i] != want {
			t.Fatalf("Reverse = %v", rows)
		}
	}
}

func TestWriteHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHeaders(rec, Result{HasNext: true}, "p", "n")

	if got := rec.Header().Get(HeaderNextCursor); got != "n" {
		t.Errorf("next cursor = %q", got)
	}
	if got := rec.Header().Get(HeaderPrevCursor); got != "" {
		t.Errorf("prev cursor should be omitted, got %q", got)
	}
	if got := rec.Header().Get(HeaderHasNext); got != "true" {
		t.Errorf("has next = %q", got)
	}
}
