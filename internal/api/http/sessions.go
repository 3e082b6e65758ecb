package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-assess/internal/assessment"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
	"github.com/mind-engage/mindengage-assess/internal/session"
)

// POST /assessments/{id}/sessions
func StartSessionHandler(svc *assessment.Service, mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Store().GetAssessment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, err)
			return
		}
		p, _ := rbac.PrincipalFromContext(r.Context())
		s, err := mgr.Start(a, p.Subject, p.Name)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s.View())
	}
}

// ownSession loads the session and hides other students' attempts.
func ownSession(mgr *session.Manager, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := mgr.Get(chi.URLParam(r, "sessionID"))
	if err == nil && s.StudentID() != rbac.SubjectFromContext(r.Context()) {
		err = session.ErrNotFound
	}
	if err != nil {
		httpError(w, err)
		return nil, false
	}
	return s, true
}

// GET /sessions/{sessionID}
func GetSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownSession(mgr, w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

// DELETE /sessions/{sessionID} abandons the attempt; drafts are dropped.
func DiscardSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownSession(mgr, w, r)
		if !ok {
			return
		}
		if err := mgr.Discard(s.ID()); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// PUT /sessions/{sessionID}/answers/{questionID}  { "answer": "text" | ["a","b"] }
func SaveDraftHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownSession(mgr, w, r)
		if !ok {
			return
		}
		var req struct {
			Answer assessment.Answer `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.SetDraft(chi.URLParam(r, "questionID"), req.Answer); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type navigateReq struct {
	Action string `json:"action"` // next|previous|jump
	Index  int    `json:"index,omitempty"`
}

// POST /sessions/{sessionID}/navigate
func NavigateHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownSession(mgr, w, r)
		if !ok {
			return
		}
		var req navigateReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		var err error
		switch req.Action {
		case "next":
			_, err = s.Next()
		case "previous":
			_, err = s.Previous()
		case "jump":
			_, err = s.JumpTo(req.Index)
		default:
			http.Error(w, "action must be next, previous or jump", http.StatusBadRequest)
			return
		}
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

// POST /sessions/{sessionID}/submit
func SubmitSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownSession(mgr, w, r)
		if !ok {
			return
		}
		sub, err := mgr.Submit(r.Context(), s.ID())
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}
