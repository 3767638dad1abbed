// Package workdir manages the folder a calculation runs in. A marker file
// records that octorun created the folder; removal is refused without it.
package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MarkerFile is the sentinel written into every folder octorun owns.
const MarkerFile = ".octorun"

// DefaultName is used when no folder is configured.
const DefaultName = "octorun_calc"

// ErrNotOwned is returned by Release when the marker file is missing.
var ErrNotOwned = errors.New("workdir: marker file missing, refusing to remove folder")

// Dir is an acquired working folder.
type Dir struct {
	path string
	keep bool
}

// Acquire creates path (and parents) if needed and writes the marker file.
// When keep is true, Release leaves the folder in place.
func Acquire(path string, keep bool) (*Dir, error) {
	if path == "" {
		path = DefaultName
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving work folder: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating work folder: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(abs, MarkerFile), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("writing marker file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("writing marker file: %w", err)
	}
	return &Dir{path: abs, keep: keep}, nil
}

// Path returns the folder path joined with elem.
func (d *Dir) Path(elem ...string) string {
	return filepath.Join(append([]string{d.path}, elem...)...)
}

// Keep reports whether Release leaves the folder in place.
func (d *Dir) Keep() bool { return d.keep }

// SetKeep changes whether Release removes the folder.
func (d *Dir) SetKeep(keep bool) { d.keep = keep }

// Owned reports whether the marker file is present.
func (d *Dir) Owned() bool {
	_, err := os.Stat(d.Path(MarkerFile))
	return err == nil
}

// Release removes the folder tree unless it is kept. Removal requires the
// marker file; a folder that lost it is left alone and ErrNotOwned returned.
// Releasing an already removed folder is a no-op.
func (d *Dir) Release() error {
	if d == nil || d.keep {
		return nil
	}
	if _, err := os.Stat(d.path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if !d.Owned() {
		return ErrNotOwned
	}
	if err := os.RemoveAll(d.path); err != nil {
		return fmt.Errorf("removing work folder: %w", err)
	}
	return nil
}
