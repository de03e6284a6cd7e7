package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vid2deck/internal/services"
	"vid2deck/internal/testsupport"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"  dQw4w9WgXcQ  ", "dQw4w9WgXcQ"},
		{"https://example.com/watch?v=short", ""},
		{"lecture.mp4", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractVideoID(tt.input); got != tt.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

type memoryTitles struct {
	mu     sync.Mutex
	titles map[string]string
}

func (m *memoryTitles) LookupTitle(_ context.Context, id string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	title, ok := m.titles[id]
	return title, ok, nil
}

func (m *memoryTitles) RememberTitle(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.titles == nil {
		m.titles = map[string]string{}
	}
	m.titles[id] = title
	return nil
}

// ytdlpStub answers metadata requests with a fixed title and writes a file at
// the -o path for downloads. Every invocation is appended to $CALLS.
const ytdlpStub = `echo "$@" >> "$CALLS"
case "$1" in
--dump-single-json)
  echo '{"id":"dQw4w9WgXcQ","title":"Talk: Go Generics","duration":61}'
  ;;
*)
  out=""
  prev=""
  for a in "$@"; do
    if [ "$prev" = "-o" ]; then out="$a"; fi
    prev="$a"
  done
  printf 'video' > "$out"
  ;;
esac
`

func newStubClient(t *testing.T, titles TitleCache) (*Client, string) {
	t.Helper()
	calls := filepath.Join(t.TempDir(), "calls")
	t.Setenv("CALLS", calls)
	bin := testsupport.WriteScript(t, t.TempDir(), "yt-dlp", ytdlpStub)
	return &Client{Binary: bin, Titles: titles}, calls
}

func readCalls(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("read calls: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestFetchDownloadsAndCaches(t *testing.T) {
	titles := &memoryTitles{}
	client, calls := newStubClient(t, titles)
	dir := filepath.Join(t.TempDir(), "videos")

	video, err := client.Fetch(context.Background(), "https://youtu.be/dQw4w9WgXcQ", dir)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if video.ID != "dQw4w9WgXcQ" || video.Title != "Talk: Go Generics" || video.Cached {
		t.Fatalf("unexpected video: %+v", video)
	}
	if video.Path != filepath.Join(dir, "dQw4w9WgXcQ.mp4") {
		t.Fatalf("path = %s", video.Path)
	}
	if video.URL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Fatalf("url = %s", video.URL)
	}
	first := readCalls(t, calls)
	if len(first) != 2 {
		t.Fatalf("expected metadata and download calls, got %q", first)
	}
	if !strings.Contains(first[1], "-f bestvideo+bestaudio/best --merge-output-format mp4") {
		t.Fatalf("download args = %q", first[1])
	}

	again, err := client.Fetch(context.Background(), "dQw4w9WgXcQ", dir)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if !again.Cached || again.Title != video.Title {
		t.Fatalf("expected cached video, got %+v", again)
	}
	if n := len(readCalls(t, calls)); n != 2 {
		t.Fatalf("cached fetch should not call yt-dlp, calls = %d", n)
	}
}

func TestFetchWithoutTitleCacheStillReusesFile(t *testing.T) {
	client, calls := newStubClient(t, nil)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dQw4w9WgXcQ.mp4"), []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	video, err := client.Fetch(context.Background(), "dQw4w9WgXcQ", dir)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !video.Cached || video.Title != "Talk: Go Generics" {
		t.Fatalf("unexpected video: %+v", video)
	}
	if got := readCalls(t, calls); len(got) != 1 || !strings.HasPrefix(got[0], "--dump-single-json") {
		t.Fatalf("expected metadata call only, got %q", got)
	}
}

func TestFetchReportsYtDlpFailure(t *testing.T) {
	bin := testsupport.WriteScript(t, t.TempDir(), "yt-dlp", "echo 'ERROR: Video unavailable' >&2\nexit 1\n")
	client := &Client{Binary: bin}
	_, err := client.Fetch(context.Background(), "dQw4w9WgXcQ", t.TempDir())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Video unavailable") {
		t.Fatalf("error should carry yt-dlp stderr: %v", err)
	}
}

func TestFetchRejectsUnknownInput(t *testing.T) {
	client := &Client{Binary: "/nonexistent/yt-dlp"}
	_, err := client.Fetch(context.Background(), "not a video", t.TempDir())
	if !errors.Is(err, ErrUnsupportedInput) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected unsupported input, got %v", err)
	}
}

func TestResolvePrefersLocalFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intro_to-generics.mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		t.Fatal(err)
	}
	client := &Client{Binary: "/nonexistent/yt-dlp"}
	video, err := client.Resolve(context.Background(), path, t.TempDir())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if video.ID != "" || video.Path != path || video.Title != "Intro To Generics" {
		t.Fatalf("unexpected video: %+v", video)
	}
	if key := video.Key(); !strings.HasPrefix(key, "intro-to-generics-") || len(key) != len("intro-to-generics-")+12 {
		t.Fatalf("Key = %q", key)
	}
}

func TestLocalKeysDistinguishSameNamedFiles(t *testing.T) {
	first := filepath.Join(t.TempDir(), "talk.mp4")
	second := filepath.Join(t.TempDir(), "talk.mp4")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	a, _, err := ResolveLocal(first)
	if err != nil {
		t.Fatalf("ResolveLocal: %v", err)
	}
	b, _, err := ResolveLocal(second)
	if err != nil {
		t.Fatalf("ResolveLocal: %v", err)
	}
	if a.Key() == b.Key() {
		t.Fatalf("same-named files share key %q", a.Key())
	}

	again, _, err := ResolveLocal(first)
	if err != nil {
		t.Fatalf("ResolveLocal: %v", err)
	}
	if again.Key() != a.Key() {
		t.Fatalf("key changed for an untouched file: %q vs %q", again.Key(), a.Key())
	}

	if err := os.WriteFile(first, []byte("re-encoded video"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(first, later, later); err != nil {
		t.Fatal(err)
	}
	rewritten, _, err := ResolveLocal(first)
	if err != nil {
		t.Fatalf("ResolveLocal: %v", err)
	}
	if rewritten.Key() == a.Key() {
		t.Fatalf("key %q survived a rewrite of the file", a.Key())
	}
}

func TestResolveLocal(t *testing.T) {
	if _, ok, err := ResolveLocal(filepath.Join(t.TempDir(), "missing.mp4")); ok || err != nil {
		t.Fatalf("missing file: ok=%v err=%v", ok, err)
	}
	if _, _, err := ResolveLocal(t.TempDir()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("directory input should be rejected, got %v", err)
	}
	if _, _, err := ResolveLocal("  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("blank input should be rejected, got %v", err)
	}
}

func TestVideoKey(t *testing.T) {
	if k := (Video{ID: "dQw4w9WgXcQ", Path: "/x/y.mp4"}).Key(); k != "dQw4w9WgXcQ" {
		t.Fatalf("Key = %q", k)
	}
}
