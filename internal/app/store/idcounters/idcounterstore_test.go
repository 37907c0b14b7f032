package idcounterstore_test

import (
	"sync"
	"testing"

	idcounterstore "github.com/mewsorg/mews/internal/app/store/idcounters"
	"github.com/mewsorg/mews/internal/app/system/indexes"
	"github.com/mewsorg/mews/internal/testutil"
)

func TestNext_Sequential(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := idcounterstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Next(ctx, "24-20-2026")
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
	other, err := store.Next(ctx, "24-04-2026")
	if err != nil || other != 1 {
		t.Errorf("independent key: %d %v", other, err)
	}
	peek, err := store.Peek(ctx, "24-20-2026")
	if err != nil || peek != 3 {
		t.Errorf("Peek: %d %v", peek, err)
	}
}

func TestNext_Concurrent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	store := idcounterstore.New(db)

	// Prime the key so concurrent upserts do not race on insert.
	if _, err := store.Next(ctx, "k"); err != nil {
		t.Fatalf("Next: %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	seen := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := store.Next(ctx, "k")
			if err != nil {
				t.Errorf("Next: %v", err)
				return
			}
			seen <- v
		}()
	}
	wg.Wait()
	close(seen)

	uniq := map[int64]bool{}
	for v := range seen {
		if uniq[v] {
			t.Errorf("sequence %d handed out twice", v)
		}
		uniq[v] = true
	}
	if len(uniq) != n {
		t.Errorf("got %d distinct values, want %d", len(uniq), n)
	}
}
