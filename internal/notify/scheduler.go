// Package notify decides when an advance notification is due and delivers
// it at most once per (target date, lead time).
package notify

import (
	"fmt"
	"strings"

	"smartcal/internal/model"
	"smartcal/internal/occurrence"
)

// Body line labels.
const (
	LabelPersonal = "일정"
	LabelHoliday  = "공휴일"
)

// Request is a notification that should be emitted. The caller marks
// DedupKey only after the sink accepted it.
type Request struct {
	Title      string
	Body       string
	DedupKey   string
	TargetDate model.Date
	Events     []model.Event
}

// DedupReader answers whether a dedup key has already been used.
type DedupReader interface {
	Notified(key string) (bool, error)
}

// Input is everything Evaluate looks at. It is a snapshot; nothing in it is
// retained.
type Input struct {
	Today      model.Date
	Settings   model.NotificationSettings
	Permission Permission

	// Personal may hold any user events; only uncompleted personal ones
	// are considered.
	Personal []model.Event
	Holidays []model.Holiday

	Dedup DedupReader
}

// DedupKey identifies the notification for target with the given lead time.
func DedupKey(target model.Date, advanceDays int) string {
	return fmt.Sprintf("notified_for_%s_adv%d", target, advanceDays)
}

// Title is the heading shown for a given lead time.
func Title(advanceDays int) string {
	if advanceDays == 0 {
		return "오늘의 일정 안내"
	}
	return fmt.Sprintf("%d일 후 일정 안내", advanceDays)
}

// Evaluate returns the notification due today, or nil when there is none.
// A nil request with a nil error is the normal "nothing to do" outcome:
// notifications off, no permission, already sent, or nothing on the target
// day. Errors are reserved for invalid input and dedup read failures.
func Evaluate(in Input) (*Request, error) {
	s := in.Settings
	if !s.Enabled || in.Permission != PermissionGranted {
		return nil, nil
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if in.Today.IsZero() {
		return nil, fmt.Errorf("%w: today is not set", model.ErrInvalidDate)
	}

	target := in.Today.AddDays(s.AdvanceDays)
	key := DedupKey(target, s.AdvanceDays)

	if in.Dedup != nil {
		done, err := in.Dedup.Notified(key)
		if err != nil {
			return nil, fmt.Errorf("notify: read dedup record: %w", err)
		}
		if done {
			return nil, nil
		}
	}

	due := make([]model.Event, 0)
	lines := make([]string, 0)

	if s.NotifyPersonal {
		for _, ev := range occurrence.OccurrencesForDay(target, in.Personal) {
			p, ok := ev.(model.Personal)
			if !ok || p.Completed {
				continue
			}
			due = append(due, p)
			lines = append(lines, LabelPersonal+": "+p.Title)
		}
	}
	if s.NotifyHolidays {
		for _, ev := range occurrence.OccurrencesForDay(target, model.Holidays(in.Holidays)) {
			due = append(due, ev)
			lines = append(lines, LabelHoliday+": "+ev.Info().Title)
		}
	}

	// Leave the dedup record alone so a later evaluation can still fire if
	// something is added for the same target date.
	if len(due) == 0 {
		return nil, nil
	}

	return &Request{
		Title:      Title(s.AdvanceDays),
		Body:       strings.Join(lines, "\n"),
		DedupKey:   key,
		TargetDate: target,
		Events:     due,
	}, nil
}
