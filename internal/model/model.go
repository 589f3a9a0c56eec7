package model

// Kind discriminates the three event variants.
type Kind string

const (
	KindHoliday  Kind = "holiday"
	KindPersonal Kind = "personal"
	KindContact  Kind = "contact"
)

func (k Kind) String() string {
	return string(k)
}

// Meta holds the fields every event variant shares.
type Meta struct {
	ID string
	// Owner is empty for holidays.
	Owner       string
	Title       string
	Description string
	// Color is a presentational tag, opaque to the core.
	Color string
}

// Info exposes the shared fields through the Event interface.
func (m Meta) Info() Meta { return m }

// Event is a calendar entry. The only implementations are Personal, Contact
// and Holiday; consumers switch on the concrete type.
type Event interface {
	Kind() Kind
	Info() Meta
	// Span returns the inclusive first and last calendar day.
	Span() (start, end Date)

	sealed()
}

// Personal is a user event covering one or more contiguous days. On ranged
// events, weekends can be carved out per weekday.
type Personal struct {
	Meta
	Start Date
	End   Date

	Completed       bool
	ExcludeSaturday bool
	ExcludeSunday   bool
}

func (Personal) Kind() Kind { return KindPersonal }
func (p Personal) Span() (start, end Date) { return p.Start, p.End }
func (p Personal) Ranged() bool { return !p.Start.Equal(p.End) }
func (Personal) sealed() {}

// Contact is a single-day reminder about a person. It has no end date.
type Contact struct {
	Meta
	Date        Date
	PhoneNumber string
}

func (Contact) Kind() Kind { return KindContact }
func (c Contact) Span() (start, end Date) { return c.Date, c.Date }
func (Contact) sealed() {}

// Holiday is a generated, read-only single-day public holiday.
type Holiday struct {
	Meta
	Date Date
}

func (Holiday) Kind() Kind { return KindHoliday }
func (h Holiday) Span() (start, end Date) { return h.Date, h.Date }
func (Holiday) sealed() {}

// Holidays widens a holiday slice to the Event interface.
func Holidays(hs []Holiday) []Event {
	out := make([]Event, len(hs))
	for i, h := range hs {
		out[i] = h
	}
	return out
}
