// Package sqlite persists per-user notification settings.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"smartcal/internal/model"
)

const DriverName = "sqlite3"

var ErrNotFound = errors.New("sqlite: settings not found")

type Storage struct {
	db *sqlx.DB
}

// Open opens (or creates) the database file at path and migrates it.
func Open(ctx context.Context, path string) (*Storage, error) {
	db, err := sql.Open(DriverName, path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	return NewStorage(ctx, db)
}

func NewStorage(ctx context.Context, db *sql.DB) (*Storage, error) {
	s := &Storage{
		db: sqlx.NewDb(db, DriverName),
	}
	if err := s.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func checkOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return errors.New("sqlite: owner is required")
	}
	return nil
}

// Get returns the stored settings of owner or ErrNotFound.
func (s *Storage) Get(ctx context.Context, owner string) (model.NotificationSettings, error) {
	return get(ctx, s.db, owner)
}

func get(ctx context.Context, q sqlx.QueryerContext, owner string) (model.NotificationSettings, error) {
	var row settingsRow
	err := sqlx.GetContext(ctx, q, &row, `
		SELECT owner, advance_days, notify_holidays, notify_personal, enabled, updated_at
		FROM notification_settings
		WHERE owner = ?
	`, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotificationSettings{}, ErrNotFound
	}
	if err != nil {
		return model.NotificationSettings{}, err
	}
	return row.Convert(), nil
}

// Put replaces the settings of owner.
func (s *Storage) Put(ctx context.Context, owner string, ns model.NotificationSettings) error {
	if err := checkOwner(owner); err != nil {
		return err
	}
	if err := ns.Validate(); err != nil {
		return err
	}
	return put(ctx, s.db, owner, ns)
}

func put(ctx context.Context, e sqlx.ExecerContext, owner string, ns model.NotificationSettings) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := e.ExecContext(ctx, `
		INSERT INTO notification_settings (owner, advance_days, notify_holidays, notify_personal, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET
			advance_days = excluded.advance_days,
			notify_holidays = excluded.notify_holidays,
			notify_personal = excluded.notify_personal,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at;
	`, owner, ns.AdvanceDays, ns.NotifyHolidays, ns.NotifyPersonal, ns.Enabled, now)
	return err
}

// GetOrCreate returns the settings of owner, storing the defaults the first
// time an owner is seen.
func (s *Storage) GetOrCreate(ctx context.Context, owner string) (model.NotificationSettings, error) {
	if err := checkOwner(owner); err != nil {
		return model.NotificationSettings{}, err
	}
	ns, err := s.Get(ctx, owner)
	if !errors.Is(err, ErrNotFound) {
		return ns, err
	}

	ns = model.DefaultSettings()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_settings (owner, advance_days, notify_holidays, notify_personal, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner) DO NOTHING;
	`, owner, ns.AdvanceDays, ns.NotifyHolidays, ns.NotifyPersonal, ns.Enabled, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return model.NotificationSettings{}, err
	}
	// Someone may have won the race; read back what is stored.
	return s.Get(ctx, owner)
}

// Update applies u to the stored settings of owner (defaults if none) and
// returns the result. Invalid updates leave the stored row untouched.
func (s *Storage) Update(ctx context.Context, owner string, u model.SettingsUpdate) (model.NotificationSettings, error) {
	if err := checkOwner(owner); err != nil {
		return model.NotificationSettings{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.NotificationSettings{}, err
	}
	defer tx.Rollback()

	cur, err := get(ctx, tx, owner)
	if errors.Is(err, ErrNotFound) {
		cur, err = model.DefaultSettings(), nil
	}
	if err != nil {
		return model.NotificationSettings{}, err
	}

	next, err := cur.Apply(u)
	if err != nil {
		return cur, err
	}
	if err := put(ctx, tx, owner, next); err != nil {
		return cur, err
	}
	return next, tx.Commit()
}

// Owners lists every owner with stored settings.
func (s *Storage) Owners(ctx context.Context) ([]string, error) {
	owners := []string{}
	err := s.db.SelectContext(ctx, &owners, `SELECT owner FROM notification_settings ORDER BY owner`)
	return owners, err
}
