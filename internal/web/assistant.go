package web

import (
	"net/http"
	"strings"

	"smartcal/internal/ai"
	"smartcal/internal/model"
	"smartcal/internal/summary"
)

type summaryItemDTO struct {
	Event          model.Record `json:"event"`
	OccurrenceDays []string     `json:"occurrenceDays"`
}

type summaryResponse struct {
	Year  int              `json:"year"`
	Month int              `json:"month"`
	Label string           `json:"label"`
	Stats summary.Stats    `json:"stats"`
	Items []summaryItemDTO `json:"items"`
}

func (s *Server) monthSummary(w http.ResponseWriter, r *http.Request) (summary.Summary, bool) {
	owner, ok := ownerID(w, r)
	if !ok {
		return summary.Summary{}, false
	}
	year, month := s.yearMonth(r)
	events, err := s.deps.Events.Events(r.Context(), owner)
	if err != nil {
		writeErr(w, err, "failed to list events")
		return summary.Summary{}, false
	}
	sum, err := summary.ForMonth(events, year, month)
	if err != nil {
		writeErr(w, err, "failed to summarize month")
		return summary.Summary{}, false
	}
	return sum, true
}

// handleSummary returns the completion overview of a month.
//
// GET /api/summary?year=2026&month=10
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.monthSummary(w, r)
	if !ok {
		return
	}
	resp := summaryResponse{
		Year:  sum.Year,
		Month: int(sum.Month),
		Label: sum.Label,
		Stats: sum.Stats,
		Items: make([]summaryItemDTO, len(sum.Items)),
	}
	for i, it := range sum.Items {
		days := make([]string, len(it.OccurrenceDays))
		for j, d := range it.OccurrenceDays {
			days[j] = d.String()
		}
		resp.Items[i] = summaryItemDTO{Event: model.RecordOf(it.Event), OccurrenceDays: days}
	}
	writeJSON(w, http.StatusOK, resp)
}

type textResponse struct {
	Text string `json:"text"`
}

// handleAISummary asks the assistant for a briefing of the month. Provider
// failures come back as an apology text with status 200.
func (s *Server) handleAISummary(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.monthSummary(w, r)
	if !ok {
		return
	}
	if s.deps.AI == nil {
		writeJSON(w, http.StatusOK, textResponse{Text: ai.MsgSummaryNoKey})
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: s.deps.AI.Summarize(r.Context(), sum.Events(), sum.Label)})
}

type chatRequest struct {
	Prompt  string `json:"prompt"`
	Context string `json:"context"`
}

// handleChat answers a free-form question. Context defaults to today.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, err, "invalid chat request")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if req.Context == "" {
		req.Context = s.today().String()
	}
	if s.deps.AI == nil {
		writeJSON(w, http.StatusOK, textResponse{Text: ai.MsgChatNoKey})
		return
	}
	writeJSON(w, http.StatusOK, textResponse{Text: s.deps.AI.Chat(r.Context(), req.Prompt, req.Context)})
}
