package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/PeakJoy/gzxspider/internal/crawler"
)

func TestPageStoreSaveAndClose(t *testing.T) {
	t.Parallel()

	store := NewPageStore()
	ctx := context.Background()
	if err := store.SavePage(ctx, crawler.PageRecord{URL: "http://a.test/", Keys: "k"}); err != nil {
		t.Fatalf("SavePage() error = %v", err)
	}
	pages := store.Pages()
	if len(pages) != 1 || pages[0].URL != "http://a.test/" || pages[0].Keys != "k" {
		t.Fatalf("unexpected pages %+v", pages)
	}

	// Mutating the copy must not affect the store.
	pages[0].URL = "changed"
	if store.Pages()[0].URL != "http://a.test/" {
		t.Fatal("Pages() leaked internal slice")
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.SavePage(ctx, crawler.PageRecord{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
