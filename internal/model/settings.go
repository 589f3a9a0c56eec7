package model

import (
	"encoding/json"
	"fmt"
)

// NotificationSettings is the per-user notification preference document.
type NotificationSettings struct {
	// AdvanceDays is the lead time in whole days; 0 means "on the day".
	AdvanceDays    int  `json:"advanceDays"`
	NotifyHolidays bool `json:"notifyHolidays"`
	NotifyPersonal bool `json:"notifyPersonal"`
	Enabled        bool `json:"enabled"`
}

// AdvanceDayOptions are the lead times offered by clients. Any non-negative
// value is accepted.
var AdvanceDayOptions = []int{0, 1, 3, 7}

// DefaultSettings is what a user gets on first login.
func DefaultSettings() NotificationSettings {
	return NotificationSettings{
		AdvanceDays:    1,
		NotifyHolidays: true,
		NotifyPersonal: true,
		Enabled:        true,
	}
}

func (s NotificationSettings) Validate() error {
	if s.AdvanceDays < 0 {
		return invalid("advanceDays", ErrInvalidAdvanceDays)
	}
	return nil
}

// SettingsUpdate is a single typed change to NotificationSettings.
type SettingsUpdate interface {
	apply(*NotificationSettings)
}

type (
	SetAdvanceDays    int
	SetNotifyHolidays bool
	SetNotifyPersonal bool
	SetEnabled        bool
	ReplaceSettings   NotificationSettings
)

func (u SetAdvanceDays) apply(s *NotificationSettings)    { s.AdvanceDays = int(u) }
func (u SetNotifyHolidays) apply(s *NotificationSettings) { s.NotifyHolidays = bool(u) }
func (u SetNotifyPersonal) apply(s *NotificationSettings) { s.NotifyPersonal = bool(u) }
func (u SetEnabled) apply(s *NotificationSettings)        { s.Enabled = bool(u) }
func (u ReplaceSettings) apply(s *NotificationSettings)   { *s = NotificationSettings(u) }

// Apply returns a copy of s with u applied. The receiver is left unchanged
// when the result would be invalid.
func (s NotificationSettings) Apply(u SettingsUpdate) (NotificationSettings, error) {
	next := s
	u.apply(&next)
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

// ParseSettingsUpdate decodes a single-field update as sent by clients,
// e.g. field "advanceDays" with value 3.
func ParseSettingsUpdate(field string, value json.RawMessage) (SettingsUpdate, error) {
	var (
		n int
		b bool
	)
	decode := func(dst any) error {
		if err := json.Unmarshal(value, dst); err != nil {
			return invalid(field, fmt.Errorf("bad value %s: %w", value, err))
		}
		return nil
	}

	switch field {
	case "advanceDays":
		if err := decode(&n); err != nil {
			return nil, err
		}
		return SetAdvanceDays(n), nil
	case "notifyHolidays":
		if err := decode(&b); err != nil {
			return nil, err
		}
		return SetNotifyHolidays(b), nil
	case "notifyPersonal":
		if err := decode(&b); err != nil {
			return nil, err
		}
		return SetNotifyPersonal(b), nil
	case "enabled":
		if err := decode(&b); err != nil {
			return nil, err
		}
		return SetEnabled(b), nil
	}
	return nil, invalid(field, ErrUnknownSetting)
}
