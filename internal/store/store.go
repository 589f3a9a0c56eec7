// Package store keeps user events as JSON documents on disk, one file per
// event, grouped by owner.
package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"

	appLog "smartcal/internal/log"
	"smartcal/internal/model"
)

var ErrNotFound = errors.New("store: event not found")

const fileExt = ".json"

// Store is the event document store. Every mutation is followed by a fresh
// snapshot to the owner's subscribers.
type Store struct {
	d        *diskv.Diskv
	basePath string

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}

	watchOnce   sync.Once
	watchErr    error
	stopWatcher context.CancelFunc
}

// Open returns a Store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: ensure base path: %w", err)
	}
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:          dir,
			AdvancedTransform: keyToPathTransform,
			InverseTransform:  pathToKeyTransform,
			// Other processes write here too, so nothing is cached.
			CacheSizeMax: 0,
			FilePerm:     0o600,
			PathPerm:     0o700,
		}),
		basePath: dir,
		subs:     make(map[string]map[*subscriber]struct{}),
	}, nil
}

// Close stops the filesystem watcher, if one was started.
func (s *Store) Close() error {
	s.mu.Lock()
	stop := s.stopWatcher
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	return nil
}

// keys look like "<base64 owner>/<id>" and map to <base>/<base64 owner>/<id>.json.
func keyToPathTransform(key string) *diskv.PathKey {
	dir, id, _ := strings.Cut(key, "/")
	return &diskv.PathKey{
		Path:     []string{dir},
		FileName: id + fileExt,
	}
}

func pathToKeyTransform(pk *diskv.PathKey) string {
	return strings.Join(pk.Path, "/") + "/" + strings.TrimSuffix(pk.FileName, fileExt)
}

func ownerDir(owner string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(owner))
}

func ownerFromDir(dir string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(dir)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func toKey(owner, id string) string {
	return ownerDir(owner) + "/" + id
}

func (s *Store) read(key string) (model.Record, error) {
	raw, err := s.d.Read(key)
	if err != nil {
		return model.Record{}, err
	}
	var rec model.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}

func (s *Store) write(rec model.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.d.Write(toKey(rec.UserID, rec.ID), data)
}

// find locates the key of an event id across owners.
func (s *Store) find(ctx context.Context, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", ErrNotFound
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for key := range s.d.Keys(ctx.Done()) {
		if _, kid, _ := strings.Cut(key, "/"); kid == id {
			return key, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", ErrNotFound
}

// Create validates rec, assigns it a fresh id and stores it. Holidays are
// generated, never stored.
func (s *Store) Create(ctx context.Context, rec model.Record) (model.Record, error) {
	if rec.Type == model.KindHoliday {
		return model.Record{}, model.ErrHolidayReadOnly
	}
	if strings.TrimSpace(rec.UserID) == "" {
		return model.Record{}, &model.ValidationError{Field: "userId", Err: errors.New("owner is required")}
	}

	rec.ID = uuid.NewString()
	rec, err := rec.Normalize()
	if err != nil {
		return model.Record{}, err
	}
	if err := s.write(rec); err != nil {
		return model.Record{}, fmt.Errorf("store: write %s: %w", rec.ID, err)
	}
	appLog.Debug("event created", "id", rec.ID, "owner", rec.UserID, "type", rec.Type.String())
	s.publish(ctx, rec.UserID)
	return rec, nil
}

// Get returns the event with id.
func (s *Store) Get(ctx context.Context, id string) (model.Record, error) {
	key, err := s.find(ctx, id)
	if err != nil {
		return model.Record{}, err
	}
	return s.read(key)
}

// Update applies patch to the event with id.
func (s *Store) Update(ctx context.Context, id string, patch model.EventPatch) (model.Record, error) {
	key, err := s.find(ctx, id)
	if err != nil {
		return model.Record{}, err
	}
	cur, err := s.read(key)
	if err != nil {
		return model.Record{}, err
	}
	next, err := cur.Apply(patch)
	if err != nil {
		return model.Record{}, err
	}
	if err := s.write(next); err != nil {
		return model.Record{}, fmt.Errorf("store: write %s: %w", id, err)
	}
	s.publish(ctx, next.UserID)
	return next, nil
}

// Delete removes the event with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	key, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	owner, _ := ownerFromDir(keyToPathTransform(key).Path[0])
	if err := s.d.Erase(key); err != nil {
		return fmt.Errorf("store: erase %s: %w", id, err)
	}
	s.publish(ctx, owner)
	return nil
}

// List returns the records of owner ordered by start date, then id.
// Unreadable documents are logged and skipped.
func (s *Store) List(ctx context.Context, owner string) ([]model.Record, error) {
	prefix := ownerDir(owner) + "/"
	all := make([]model.Record, 0)
	for key := range s.d.KeysPrefix(prefix, ctx.Done()) {
		rec, err := s.read(key)
		if err != nil {
			appLog.Error("skipping unreadable event", err, "key", key)
			continue
		}
		all = append(all, rec)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sortRecords(all)
	return all, nil
}

// Events is List converted to events; invalid documents are skipped.
func (s *Store) Events(ctx context.Context, owner string) ([]model.Event, error) {
	recs, err := s.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(recs))
	for _, rec := range recs {
		ev, err := rec.Event()
		if err != nil {
			appLog.Error("skipping invalid event", err, "id", rec.ID)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func sortRecords(recs []model.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].StartDate != recs[j].StartDate {
			return recs[i].StartDate < recs[j].StartDate
		}
		return recs[i].ID < recs[j].ID
	})
}
