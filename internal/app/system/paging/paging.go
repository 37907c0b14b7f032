// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the number of rows returned per page of a list endpoint.
const PageSize = 50

// Response headers carrying the cursors. List bodies stay plain JSON arrays.
const (
	HeaderPrevCursor = "X-Prev-Cursor"
	HeaderNextCursor = "X-Next-Cursor"
	HeaderHasPrev    = "X-Has-Prev"
	HeaderHasNext    = "X-Has-Next"
)

// LimitPlusOne is PageSize+1; the extra row detects a following page.
func LimitPlusOne() int64 { return int64(PageSize + 1) }

// Params reads the before/after cursors from the query string.
func Params(r *http.Request) (before, after string) {
	return query.Get(r, "before"), query.Get(r, "after")
}

// Result reports whether neighbouring pages exist.
type Result struct {
	HasPrev bool
	HasNext bool
}

// TrimPage trims a PageSize+1 fetch down to one page.
//
// Paging backwards (before != "") drops the first row when there is an
// extra and always reports a next page. Paging forwards drops the last row
// and reports a previous page only when after was set.
func TrimPage[T any](rows *[]T, before, after string) Result {
	orig := len(*rows)
	var res Result
	if before != "" {
		if orig > PageSize {
			*rows = (*rows)[1:]
			res.HasPrev = true
		}
		res.HasNext = true
		return res
	}
	if orig > PageSize {
		*rows = (*rows)[:PageSize]
		res.HasNext = true
	}
	res.HasPrev = after != ""
	return res
}

// Direction indicates the pagination direction.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// KeysetConfig is the decoded paging request.
type KeysetConfig struct {
	Direction Direction
	SortOrder int
	Cursor    *wafflemongo.Cursor
}

// ConfigureKeyset decodes whichever cursor is present. An undecodable
// cursor is treated as the first page.
func ConfigureKeyset(before, after string) KeysetConfig {
	cfg := KeysetConfig{Direction: Forward, SortOrder: 1}
	switch {
	case before != "":
		cfg.Direction = Backward
		cfg.SortOrder = -1
		if c, ok := wafflemongo.DecodeCursor(before); ok {
			cfg.Cursor = &c
		}
	case after != "":
		if c, ok := wafflemongo.DecodeCursor(after); ok {
			cfg.Cursor = &c
		}
	}
	return cfg
}

// ApplyToFind sets sort (field, _id) and the look-ahead limit.
func (cfg KeysetConfig) ApplyToFind(find *options.FindOptions, sortField string) {
	find.SetSort(bson.D{
		{Key: sortField, Value: cfg.SortOrder},
		{Key: "_id", Value: cfg.SortOrder},
	}).SetLimit(LimitPlusOne())
}

// KeysetWindow is the cursor condition to AND into the filter, or nil.
func (cfg KeysetConfig) KeysetWindow(sortField string) bson.M {
	if cfg.Cursor == nil {
		return nil
	}
	dir := "gt"
	if cfg.Direction == Backward {
		dir = "lt"
	}
	return wafflemongo.KeysetWindow(sortField, dir, cfg.Cursor.CI, cfg.Cursor.ID)
}

// Reverse reverses rows in place; backward pages are fetched descending.
func Reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// BuildCursors encodes cursors for the first and last rows.
func BuildCursors[T any](rows []T, keyFn func(T) string, idFn func(T) primitive.ObjectID) (prev, next string) {
	if len(rows) == 0 {
		return "", ""
	}
	first, last := rows[0], rows[len(rows)-1]
	return wafflemongo.EncodeCursor(keyFn(first), idFn(first)),
		wafflemongo.EncodeCursor(keyFn(last), idFn(last))
}

// WriteHeaders publishes the page state on the response.
func WriteHeaders(w http.ResponseWriter, res Result, prev, next string) {
	h := w.Header()
	h.Set(HeaderHasPrev, strconv.FormatBool(res.HasPrev))
	h.Set(HeaderHasNext, strconv.FormatBool(res.HasNext))
	if res.HasPrev && prev != "" {
		h.Set(HeaderPrevCursor, prev)
	}
	if res.HasNext && next != "" {
		h.Set(HeaderNextCursor, next)
	}
}
