// Package upload holds submitted captures on local disk for the duration of
// one job's processing pass.
package upload

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Handle identifies one stored capture. The pass that created it owns it
// exclusively until Remove.
type Handle struct {
	ID   uuid.UUID
	Name string // original filename, for the multipart part name
	Path string // absolute path on disk
}

type Store struct {
	dir string
	log *slog.Logger
}

func NewStore(dir string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	return &Store{dir: abs, log: log}, nil
}

// Save writes the stream to the artifact directory under a fresh name and
// returns a handle for it. The caller must Remove the handle when done.
func (s *Store) Save(name string, r io.Reader) (Handle, error) {
	id := uuid.New()
	path := filepath.Join(s.dir, id.String()+"_"+filepath.Base(name))

	f, err := os.Create(path)
	if err != nil {
		return Handle{}, fmt.Errorf("store capture: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		// best effort: don't leave a partial file behind
		_ = os.Remove(path)
		return Handle{}, fmt.Errorf("store capture: %w", err)
	}

	s.log.Info("capture stored", "handle_id", id, "name", name, "bytes", n)
	return Handle{ID: id, Name: name, Path: path}, nil
}

// Remove deletes the stored capture. It never fails: a removal error must not
// mask the outcome of the job it belonged to, so it is logged and swallowed.
// Removing an already-removed handle is a no-op.
func (s *Store) Remove(h Handle) {
	if h.Path == "" {
		return
	}
	if err := os.Remove(h.Path); err != nil {
		if os.IsNotExist(err) {
			return
		}
		s.log.Warn("capture remove failed", "handle_id", h.ID, "path", h.Path, "err", err)
		return
	}
	s.log.Info("capture removed", "handle_id", h.ID)
}
