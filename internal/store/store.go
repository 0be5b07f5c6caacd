// Package store keeps daily logs as markdown files under a root directory.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/abishchhetri-svg/Tasks/internal/logging"
	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

// ErrConflict means the file changed between the caller's read and its write.
var ErrConflict = errors.New("document changed on disk since it was read")

// Revision is the on-disk state of one document at read time.
type Revision struct {
	Text  string
	Hash  string
	Found bool
}

type FileStore struct {
	root string
	mu   sync.Mutex
	log  *logrus.Entry
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root, log: logging.For("store")}
}

func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) Path(date worklog.Date) string {
	return filepath.Join(s.root, date.RelPath())
}

// Read returns the current text of a day's log. A missing file is not an
// error; Found is false and Hash is empty.
func (s *FileStore) Read(ctx context.Context, date worklog.Date) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}
	data, err := os.ReadFile(s.Path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return Revision{}, nil
		}
		return Revision{}, fmt.Errorf("read %s: %w", date, err)
	}
	text := string(data)
	return Revision{Text: text, Hash: Hash(text), Found: true}, nil
}

// Write replaces a day's log with text if the file still matches expectHash
// (empty when the caller saw no file). The new content is written to a
// temporary file in the same directory and renamed into place, so readers
// see either the old or the new document.
func (s *FileStore) Write(ctx context.Context, date worklog.Date, text, expectHash string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(date)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}

	current, err := s.currentHash(path)
	if err != nil {
		return "", err
	}
	if current != expectHash {
		s.log.WithField("date", date).Warn("document changed since read")
		return "", ErrConflict
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return "", fmt.Errorf("replace %s: %w", path, err)
	}

	s.log.WithFields(logrus.Fields{"date": date, "bytes": len(text)}).Debug("document written")
	return path, nil
}

// Dates lists every day that has a log file, oldest first.
func (s *FileStore) Dates() ([]worklog.Date, error) {
	var dates []worklog.Date
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if date, ok := dateFromName(path); ok {
			dates = append(dates, date)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return dates, nil
}

func (s *FileStore) currentHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return Hash(string(data)), nil
}

func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
