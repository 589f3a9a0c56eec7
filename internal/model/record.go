package model

import (
	"fmt"
	"strings"
)

// Record is the flat document shape events are stored and exchanged in.
// Kind-specific fields are only meaningful for their kind; Event() turns a
// Record into the matching variant and drops the rest.
type Record struct {
	ID              string `json:"id"`
	UserID          string `json:"userId,omitempty"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	Title           string `json:"title"`
	Type            Kind   `json:"type"`
	Color           string `json:"color,omitempty"`
	Description     string `json:"description,omitempty"`
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	Completed       bool   `json:"completed"`
	ExcludeSaturday bool   `json:"excludeSaturday"`
	ExcludeSunday   bool   `json:"excludeSunday"`
}

// Event validates r and converts it to its variant.
func (r Record) Event() (Event, error) {
	meta := Meta{
		ID:          r.ID,
		Owner:       r.UserID,
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Color:       r.Color,
	}
	if meta.Title == "" {
		return nil, invalid("title", ErrEmptyTitle)
	}

	start, err := ParseDate(r.StartDate)
	if err != nil {
		return nil, invalid("startDate", err)
	}

	switch r.Type {
	case KindPersonal:
		end := start
		if r.EndDate != "" {
			if end, err = ParseDate(r.EndDate); err != nil {
				return nil, invalid("endDate", err)
			}
		}
		if end.Before(start) {
			return nil, invalid("endDate", ErrEndBeforeStart)
		}
		p := Personal{
			Meta:      meta,
			Start:     start,
			End:       end,
			Completed: r.Completed,
		}
		// Weekday exclusion only exists for ranges.
		if p.Ranged() {
			p.ExcludeSaturday = r.ExcludeSaturday
			p.ExcludeSunday = r.ExcludeSunday
		}
		return p, nil

	case KindContact:
		// The end date of a contact is whatever its start is.
		return Contact{Meta: meta, Date: start, PhoneNumber: strings.TrimSpace(r.PhoneNumber)}, nil

	case KindHoliday:
		return Holiday{Meta: Meta{ID: r.ID, Title: meta.Title, Description: r.Description, Color: r.Color}, Date: start}, nil
	}

	return nil, invalid("type", fmt.Errorf("%w: %q", ErrUnknownKind, r.Type))
}

// RecordOf flattens an event into its document shape.
func RecordOf(ev Event) Record {
	m := ev.Info()
	start, end := ev.Span()
	r := Record{
		ID:          m.ID,
		UserID:      m.Owner,
		StartDate:   start.String(),
		EndDate:     end.String(),
		Title:       m.Title,
		Type:        ev.Kind(),
		Color:       m.Color,
		Description: m.Description,
	}
	switch e := ev.(type) {
	case Personal:
		r.Completed = e.Completed
		r.ExcludeSaturday = e.ExcludeSaturday
		r.ExcludeSunday = e.ExcludeSunday
	case Contact:
		r.PhoneNumber = e.PhoneNumber
	case Holiday:
		r.UserID = ""
	}
	return r
}

// Normalize round-trips r through its variant, returning the canonical
// document (trimmed title, coerced contact end date, cleared flags).
func (r Record) Normalize() (Record, error) {
	ev, err := r.Event()
	if err != nil {
		return Record{}, err
	}
	return RecordOf(ev), nil
}

// EventPatch is a partial update of a stored event. Nil fields are left
// untouched.
type EventPatch struct {
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	Color           *string `json:"color,omitempty"`
	StartDate       *string `json:"startDate,omitempty"`
	EndDate         *string `json:"endDate,omitempty"`
	PhoneNumber     *string `json:"phoneNumber,omitempty"`
	Completed       *bool   `json:"completed,omitempty"`
	ExcludeSaturday *bool   `json:"excludeSaturday,omitempty"`
	ExcludeSunday   *bool   `json:"excludeSunday,omitempty"`
}

// Apply returns r with the patch applied and re-validated. Holidays are
// never patchable.
func (r Record) Apply(p EventPatch) (Record, error) {
	if r.Type == KindHoliday {
		return Record{}, ErrHolidayReadOnly
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&r.Title, p.Title)
	set(&r.Description, p.Description)
	set(&r.Color, p.Color)
	set(&r.StartDate, p.StartDate)
	set(&r.EndDate, p.EndDate)
	set(&r.PhoneNumber, p.PhoneNumber)
	setBool(&r.Completed, p.Completed)
	setBool(&r.ExcludeSaturday, p.ExcludeSaturday)
	setBool(&r.ExcludeSunday, p.ExcludeSunday)
	return r.Normalize()
}
