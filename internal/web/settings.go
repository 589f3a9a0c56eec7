package web

import (
	"encoding/json"
	"net/http"

	"smartcal/internal/model"
	"smartcal/internal/notify"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	ns, err := s.deps.Settings.GetOrCreate(r.Context(), owner)
	if err != nil {
		writeErr(w, err, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

// handlePutSettings replaces the whole settings document.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var ns model.NotificationSettings
	if err := decodeJSON(w, r, &ns); err != nil {
		writeErr(w, err, "invalid settings")
		return
	}
	if err := ns.Validate(); err != nil {
		writeErr(w, err, "invalid settings")
		return
	}
	if err := s.deps.Settings.Put(r.Context(), owner, ns); err != nil {
		writeErr(w, err, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

type settingsPatch struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// handlePatchSettings changes a single field.
//
// PATCH /api/settings {"field": "advanceDays", "value": 3}
func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var p settingsPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeErr(w, err, "invalid settings update")
		return
	}
	u, err := model.ParseSettingsUpdate(p.Field, p.Value)
	if err != nil {
		writeErr(w, err, "invalid settings update")
		return
	}
	ns, err := s.deps.Settings.Update(r.Context(), owner, u)
	if err != nil {
		writeErr(w, err, "failed to update settings")
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

type notificationDTO struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	TargetDate string `json:"targetDate"`
	DedupKey   string `json:"dedupKey"`
}

type checkResponse struct {
	Fired        bool             `json:"fired"`
	Notification *notificationDTO `json:"notification,omitempty"`
}

// handleNotifyCheck runs the notification pass for the caller right away,
// as a client does when it opens.
func (s *Server) handleNotifyCheck(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	req, err := s.deps.Notifier.RunOnce(r.Context(), owner, s.today())
	if err != nil {
		writeErr(w, err, "notification check failed")
		return
	}
	resp := checkResponse{Fired: req != nil}
	if req != nil {
		resp.Notification = &notificationDTO{
			Title:      req.Title,
			Body:       req.Body,
			TargetDate: req.TargetDate.String(),
			DedupKey:   req.DedupKey,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type permissionResponse struct {
	Permission notify.Permission `json:"permission"`
}

func (s *Server) handleGetPermission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, permissionResponse{Permission: s.deps.Notifier.Sink().PermissionStatus(r.Context())})
}

func (s *Server) handleRequestPermission(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Notifier.Sink().RequestPermission(r.Context())
	if err != nil {
		writeErr(w, err, "permission request failed")
		return
	}
	writeJSON(w, http.StatusOK, permissionResponse{Permission: p})
}

type themeBody struct {
	Theme string `json:"theme"`
}

func (s *Server) handleGetTheme(w http.ResponseWriter, _ *http.Request) {
	theme, err := s.deps.Theme.Theme()
	if err != nil {
		writeErr(w, err, "failed to load theme")
		return
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: theme})
}

func (s *Server) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	var body themeBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeErr(w, err, "invalid theme")
		return
	}
	if err := s.deps.Theme.SetTheme(body.Theme); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, body)
}
