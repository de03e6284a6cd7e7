package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"

	"vid2deck/internal/services"
	"vid2deck/internal/slides"
)

// ErrDeckLocked is returned when another build holds the deck directory.
var ErrDeckLocked = errors.New("deck is being built by another process")

const lockName = ".vid2deck.lock"

var slideFilePattern = regexp.MustCompile(`^\d+-\d{2}-\d{2}(_\d+)?\.jpg$`)

// lockDeck creates dir and takes its exclusive build lock.
func lockDeck(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create deck directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire deck lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "workflow", "lock deck", dir, ErrDeckLocked)
	}
	return lock, nil
}

// clearDeck removes slides, thumbnails and manifests left by a previous
// build so the directory only reflects the current one.
func clearDeck(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read deck directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		var rmErr error
		switch {
		case entry.IsDir() && name == "thumbs":
			rmErr = os.RemoveAll(filepath.Join(dir, name))
		case entry.IsDir():
			continue
		case slideFilePattern.MatchString(name),
			name == slides.ManifestName(slides.FormatJSON),
			name == slides.ManifestName(slides.FormatYAML):
			rmErr = os.Remove(filepath.Join(dir, name))
		}
		if rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("clear deck: %w", rmErr)
		}
	}
	return nil
}
