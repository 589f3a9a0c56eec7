package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "smartcal/internal/log"
	"smartcal/internal/model"
)

type subscriber struct {
	mu     sync.Mutex
	ch     chan []model.Event
	closed bool
}

// offer replaces any snapshot the consumer has not picked up yet.
func (s *subscriber) offer(snapshot []model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snapshot
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Subscribe streams full snapshots of owner's events. The first value is
// the current state; each change to the owner's documents, in this process
// or another one writing the same directory, produces a new snapshot. Slow
// consumers only ever see the latest one. The channel is closed when ctx is
// done.
func (s *Store) Subscribe(ctx context.Context, owner string) (<-chan []model.Event, error) {
	if err := s.startWatcher(); err != nil {
		return nil, err
	}

	snapshot, err := s.Events(ctx, owner)
	if err != nil {
		return nil, err
	}

	sub := &subscriber{ch: make(chan []model.Event, 1)}
	sub.ch <- snapshot

	s.mu.Lock()
	if s.subs[owner] == nil {
		s.subs[owner] = make(map[*subscriber]struct{})
	}
	s.subs[owner][sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs[owner], sub)
		if len(s.subs[owner]) == 0 {
			delete(s.subs, owner)
		}
		s.mu.Unlock()
		sub.close()
	}()

	return sub.ch, nil
}

// publish re-lists owner's events and hands the snapshot to every
// subscriber of that owner.
func (s *Store) publish(ctx context.Context, owner string) {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs[owner]))
	for sub := range s.subs[owner] {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	snapshot, err := s.Events(context.WithoutCancel(ctx), owner)
	if err != nil {
		appLog.Error("failed to list events for subscribers", err, "owner", owner)
		return
	}
	for _, sub := range subs {
		sub.offer(snapshot)
	}
}

// startWatcher begins watching the base directory for writes made by other
// processes. It runs until Close.
func (s *Store) startWatcher() error {
	s.watchOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		events, err := s.watch(ctx)
		if err != nil {
			cancel()
			s.watchErr = err
			return
		}
		s.mu.Lock()
		s.stopWatcher = cancel
		s.mu.Unlock()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case owner := <-events:
					s.publish(ctx, owner)
				}
			}
		}()
	})
	return s.watchErr
}

// watch emits the owner whose directory changed, coalescing bursts. The
// channel is never closed; stop reading when ctx is done.
func (s *Store) watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("store: create watcher: %w", err)
	}
	var closeOnce sync.Once
	closeWatcher := func() {
		closeOnce.Do(func() {
			if err := watcher.Close(); err != nil {
				appLog.Error("store: watcher close", err)
			}
		})
	}

	dirs, err := collectDirs(s.basePath)
	if err != nil {
		closeWatcher()
		return nil, fmt.Errorf("store: enumerate directories: %w", err)
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			closeWatcher()
			return nil, fmt.Errorf("store: watch %s: %w", dir, err)
		}
	}

	owners := make(chan string, 64)

	go func() {
		defer closeWatcher()

		watched := make(map[string]struct{}, len(dirs))
		for _, dir := range dirs {
			watched[dir] = struct{}{}
		}

		send := func(owner string) {
			select {
			case owners <- owner:
			default:
			}
		}
		throttle := newOwnerThrottle(100 * time.Millisecond)
		defer throttle.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				appLog.Error("store: watcher error", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&fsnotify.Create == fsnotify.Create {
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						dir := filepath.Clean(evt.Name)
						if _, found := watched[dir]; !found {
							if err := watcher.Add(dir); err != nil {
								appLog.Error("store: watch new directory", err, "dir", dir)
							} else {
								watched[dir] = struct{}{}
							}
						}
						// Files written before Add went unobserved; re-list the owner.
						if owner, ok := s.ownerForDir(dir); ok {
							throttle.Enqueue(owner, send)
						}
						continue
					}
				}
				if owner, ok := s.ownerForPath(evt.Name); ok {
					throttle.Enqueue(owner, send)
				}
			}
		}
	}()

	return owners, nil
}

func collectDirs(base string) ([]string, error) {
	dirs := []string{base}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() && path != base {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

// ownerForPath maps <base>/<owner dir>/<id>.json back to the owner.
func (s *Store) ownerForPath(path string) (string, bool) {
	rel, err := filepath.Rel(s.basePath, path)
	if err != nil || rel == "." {
		return "", false
	}
	parts := strings.Split(rel, string(os.PathSeparator))
	if len(parts) != 2 || !strings.HasSuffix(parts[1], fileExt) {
		return "", false
	}
	return ownerFromDir(parts[0])
}

// ownerForDir maps <base>/<owner dir> back to the owner.
func (s *Store) ownerForDir(dir string) (string, bool) {
	rel, err := filepath.Rel(s.basePath, dir)
	if err != nil || rel == "." || strings.ContainsRune(rel, os.PathSeparator) {
		return "", false
	}
	return ownerFromDir(rel)
}

// ownerThrottle coalesces change notifications per owner so a burst of
// writes produces one snapshot.
type ownerThrottle struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	delay   time.Duration
}

func newOwnerThrottle(delay time.Duration) *ownerThrottle {
	return &ownerThrottle{delay: delay, pending: make(map[string]struct{})}
}

func (t *ownerThrottle) Enqueue(owner string, send func(string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[owner] = struct{}{}
	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, func() { t.flush(send) })
	}
}

func (t *ownerThrottle) flush(send func(string)) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]struct{})
	t.timer = nil
	t.mu.Unlock()

	for owner := range pending {
		send(owner)
	}
}

func (t *ownerThrottle) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}
