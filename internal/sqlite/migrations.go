package sqlite

import "context"

func (s *Storage) RunMigrations(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS notification_settings (
		owner VARCHAR NOT NULL PRIMARY KEY,
		advance_days INTEGER NOT NULL DEFAULT 1 CHECK (advance_days >= 0),
		notify_holidays BOOLEAN NOT NULL DEFAULT 1,
		notify_personal BOOLEAN NOT NULL DEFAULT 1,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		updated_at VARCHAR NOT NULL DEFAULT ""
	)`,
}
