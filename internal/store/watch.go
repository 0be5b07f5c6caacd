package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

var dailyFilePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.md$`)

// Watch reports changes to daily log files made by anyone, this process
// included, until ctx is done. fsnotify is not recursive, so every directory
// under the root is watched and new ones are added as they appear.
func (s *FileStore) Watch(ctx context.Context, onChange func(worklog.Date)) error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("create log root: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	err = filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.root, err)
	}

	s.log.WithField("root", s.root).Info("watching log directory")
	go s.watchLoop(ctx, watcher, onChange)
	return nil
}

func (s *FileStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, onChange func(worklog.Date)) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					s.watchTree(watcher, event.Name, onChange)
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if date, ok := dateFromName(event.Name); ok {
				onChange(date)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.WithError(err).Warn("watcher error")
		}
	}
}

// watchTree adds a directory created after startup. Its subdirectories and
// files may already exist by the time the event arrives.
func (s *FileStore) watchTree(watcher *fsnotify.Watcher, dir string, onChange func(worklog.Date)) {
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		if date, ok := dateFromName(path); ok {
			onChange(date)
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).WithField("dir", dir).Warn("watch new directory")
	}
}

func dateFromName(path string) (worklog.Date, bool) {
	name := filepath.Base(path)
	if !dailyFilePattern.MatchString(name) {
		return "", false
	}
	return worklog.Date(strings.TrimSuffix(name, ".md")), true
}
