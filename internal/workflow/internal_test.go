package workflow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vid2deck/internal/dedup"
	"vid2deck/internal/download"
)

func TestFormatSpans(t *testing.T) {
	var spans []dedup.Span
	for i := range 12 {
		at := time.Duration(i*10) * time.Second
		spans = append(spans, dedup.Span{Anchor: at, First: at + 2*time.Second, Last: at + 4*time.Second, Count: 2})
	}
	lines := formatSpans(spans)
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if n := len(strings.Split(lines[0], " / ")); n != 10 {
		t.Fatalf("first line has %d spans", n)
	}
	if !strings.HasPrefix(lines[0], "0:00-0:04 / 0:10-0:14") {
		t.Fatalf("first line = %q", lines[0])
	}
	if lines[1] != "1:40-1:44 / 1:50-1:54" {
		t.Fatalf("second line = %q", lines[1])
	}
	if formatSpans(nil) != nil {
		t.Fatal("no spans should render no lines")
	}
}

func TestDeckName(t *testing.T) {
	video := download.Video{ID: "dQw4w9WgXcQ", Title: "Go: Concurrency / Patterns"}
	if got := deckName("  ", video); got == "" || strings.ContainsAny(got, "/:") {
		t.Fatalf("deckName from title = %q", got)
	}
	if got := deckName("My Deck", video); got != "My Deck" {
		t.Fatalf("deckName with base = %q", got)
	}
	if got := deckName("", download.Video{ID: "dQw4w9WgXcQ"}); got != "dQw4w9WgXcQ" {
		t.Fatalf("deckName fallback = %q", got)
	}
}

func TestClearDeck(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0-00-00.jpg", "0-01-02_7.jpg", "deck.json", "deck.yaml", "cover.jpg", lockName} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "thumbs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := clearDeck(dir); err != nil {
		t.Fatalf("clearDeck: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	if strings.Join(left, ",") != ".vid2deck.lock,cover.jpg" {
		t.Fatalf("remaining = %v", left)
	}
}
