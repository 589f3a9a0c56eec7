package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"smartcal/internal/model"
	"smartcal/internal/store"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	recs, err := s.deps.Events.List(r.Context(), owner)
	if err != nil {
		writeErr(w, err, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleCreateEvent stores a new event for the caller. The owner always
// comes from the request, never from the body.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}
	var rec model.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		writeErr(w, err, "invalid event")
		return
	}
	rec.UserID = owner
	created, err := s.deps.Events.Create(r.Context(), rec)
	if err != nil {
		writeErr(w, err, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ownedEvent loads the event named in the path and hides other owners'
// events behind a 404.
func (s *Server) ownedEvent(w http.ResponseWriter, r *http.Request) (model.Record, bool) {
	owner, ok := ownerID(w, r)
	if !ok {
		return model.Record{}, false
	}
	rec, err := s.deps.Events.Get(r.Context(), mux.Vars(r)["id"])
	if err == nil && rec.UserID != owner {
		err = store.ErrNotFound
	}
	if err != nil {
		writeErr(w, err, "failed to load event")
		return model.Record{}, false
	}
	return rec, true
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.ownedEvent(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.ownedEvent(w, r)
	if !ok {
		return
	}
	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeErr(w, err, "invalid patch")
		return
	}
	updated, err := s.deps.Events.Update(r.Context(), rec.ID, patch)
	if err != nil {
		writeErr(w, err, "failed to update event")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.ownedEvent(w, r)
	if !ok {
		return
	}
	if err := s.deps.Events.Delete(r.Context(), rec.ID); err != nil {
		writeErr(w, err, "failed to delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleShareEvent returns the plain-text share message of an event.
func (s *Server) handleShareEvent(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.ownedEvent(w, r)
	if !ok {
		return
	}
	ev, err := rec.Event()
	if err != nil {
		writeErr(w, err, "stored event is invalid")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": model.ShareText(ev)})
}
