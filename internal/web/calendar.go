package web

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"smartcal/internal/holiday"
	"smartcal/internal/ics"
	appLog "smartcal/internal/log"
	"smartcal/internal/model"
	"smartcal/internal/occurrence"
	"smartcal/internal/summary"
	"smartcal/internal/weather"
)

//go:embed templates/print.html
var templatesFS embed.FS

var printTemplate = template.Must(template.ParseFS(templatesFS, "templates/print.html"))

// dayDTO is one grid cell as sent to clients.
type dayDTO struct {
	Date           string         `json:"date"`
	IsCurrentMonth bool           `json:"isCurrentMonth"`
	IsToday        bool           `json:"isToday"`
	Holiday        *model.Record  `json:"holiday,omitempty"`
	Events         []model.Record `json:"events"`
	Weather        *weather.Day   `json:"weather,omitempty"`
}

type monthResponse struct {
	Year  int      `json:"year"`
	Month int      `json:"month"`
	Label string   `json:"label"`
	Days  []dayDTO `json:"days"`
}

func recordsOf(events []model.Event) []model.Record {
	out := make([]model.Record, len(events))
	for i, ev := range events {
		out[i] = model.RecordOf(ev)
	}
	return out
}

// monthGrid builds the 42 cells of a month with the holidays of every year
// the grid touches.
func (s *Server) monthGrid(r *http.Request, owner string, year, month int) ([]occurrence.DayCell, error) {
	if month < 1 || month > 12 {
		return nil, occurrence.ErrInvalidMonth
	}
	events, err := s.deps.Events.Events(r.Context(), owner)
	if err != nil {
		return nil, err
	}
	start := occurrence.GridStart(year, time.Month(month))
	holidays := holiday.ForRange(start, start.AddDays(occurrence.GridCells-1))
	return occurrence.MonthOccurrences(year, month, s.today(), events, holidays)
}

func (s *Server) forecast(r *http.Request) map[string]weather.Day {
	return weather.Degrade(r.Context(), s.deps.Weather, s.cfg.Weather.Latitude, s.cfg.Weather.Longitude)
}

// handleMonth returns the month grid.
//
// GET /api/month?year=2026&month=10
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	year, month := s.yearMonth(r)
	cells, err := s.monthGrid(r, owner, year, month)
	if err != nil {
		writeErr(w, err, "failed to build month")
		return
	}

	forecast := s.forecast(r)
	resp := monthResponse{
		Year:  year,
		Month: month,
		Label: summary.Label(year, time.Month(month)),
		Days:  make([]dayDTO, len(cells)),
	}
	for i, c := range cells {
		d := dayDTO{
			Date:           c.DateString,
			IsCurrentMonth: c.IsCurrentMonth,
			IsToday:        c.IsToday,
			Events:         recordsOf(c.Events),
		}
		if c.Holiday != nil {
			h := model.RecordOf(*c.Holiday)
			d.Holiday = &h
		}
		if wd, ok := forecast[c.DateString]; ok {
			d.Weather = &wd
		}
		resp.Days[i] = d
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDay returns what happens on a single date.
//
// GET /api/day/2026-10-03
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	raw := mux.Vars(r)["date"]
	events, err := s.deps.Events.Events(r.Context(), owner)
	if err != nil {
		writeErr(w, err, "failed to list events")
		return
	}
	occ, err := occurrence.ResolveDay(raw, events)
	if err != nil {
		writeErr(w, err, "failed to resolve day")
		return
	}
	day := model.MustParseDate(raw)

	resp := dayDTO{
		Date:    day.String(),
		IsToday: day.Equal(s.today()),
		Events:  recordsOf(occ),
	}
	if h, ok := holiday.Lookup(holiday.ForYear(day.Year()), day); ok {
		rec := model.RecordOf(h)
		resp.Holiday = &rec
	}
	if wd, ok := s.forecast(r)[resp.Date]; ok {
		resp.Weather = &wd
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(mux.Vars(r)["year"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	writeJSON(w, http.StatusOK, recordsOf(model.Holidays(holiday.ForYear(year))))
}

// handleExport serves the owner's events as an iCalendar feed.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	events, err := s.deps.Events.Events(r.Context(), owner)
	if err != nil {
		writeErr(w, err, "failed to list events")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="smartcal.ics"`)
	if err := ics.Export(w, "SmartCal", events); err != nil {
		appLog.Error("ics export failed", err, "owner", owner)
	}
}

type printCell struct {
	Day     int
	Current bool
	Today   bool
	Sunday  bool
	Holiday string
	Events  []string
	Icon    string
}

type printPage struct {
	Label    string
	Weekdays []string
	Weeks    [][]printCell
}

var weekdayLabels = []string{"일", "월", "화", "수", "목", "금", "토"}

// handlePrint renders a static month page for headless capture. The root
// element carries data-ready="true" once the grid is in the document.
//
// GET /print?year=2026&month=10&owner=u1
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	year, month := s.yearMonth(r)
	cells, err := s.monthGrid(r, owner, year, month)
	if err != nil {
		writeErr(w, err, "failed to build month")
		return
	}

	forecast := s.forecast(r)
	page := printPage{Label: summary.Label(year, time.Month(month)), Weekdays: weekdayLabels}
	for i, c := range cells {
		if i%7 == 0 {
			page.Weeks = append(page.Weeks, make([]printCell, 0, 7))
		}
		pc := printCell{
			Day:     c.Date.Day(),
			Current: c.IsCurrentMonth,
			Today:   c.IsToday,
			Sunday:  c.Date.Weekday() == time.Sunday,
			Icon:    forecast[c.DateString].Icon,
		}
		if c.Holiday != nil {
			pc.Holiday = c.Holiday.Title
		}
		for _, ev := range c.Events {
			pc.Events = append(pc.Events, ev.Info().Title)
		}
		week := len(page.Weeks) - 1
		page.Weeks[week] = append(page.Weeks[week], pc)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := printTemplate.Execute(w, page); err != nil {
		appLog.Error("print page render failed", err)
	}
}
