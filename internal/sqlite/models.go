package sqlite

import "smartcal/internal/model"

type settingsRow struct {
	Owner          string `db:"owner"`
	AdvanceDays    int    `db:"advance_days"`
	NotifyHolidays bool   `db:"notify_holidays"`
	NotifyPersonal bool   `db:"notify_personal"`
	Enabled        bool   `db:"enabled"`
	UpdatedAt      string `db:"updated_at"`
}

func (r settingsRow) Convert() model.NotificationSettings {
	return model.NotificationSettings{
		AdvanceDays:    r.AdvanceDays,
		NotifyHolidays: r.NotifyHolidays,
		NotifyPersonal: r.NotifyPersonal,
		Enabled:        r.Enabled,
	}
}
