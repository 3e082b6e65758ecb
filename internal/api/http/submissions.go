package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-assess/internal/assessment"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
)

// scopeSubmissions narrows opts to what the caller may see: students get
// their own, instructors get submissions to their assessments.
func scopeSubmissions(r *http.Request, opts *assessment.SubmissionListOpts) {
	sub := rbac.SubjectFromContext(r.Context())
	switch {
	case !rbac.Can(r, rbac.PermSubmissionViewAll):
		opts.StudentID = sub
	case !rbac.Can(r, rbac.PermAssessmentEditAny):
		opts.InstructorID = sub
	}
}

// GET /submissions?assessment_id=&student_id=&status=&limit=50&offset=0
func ListSubmissionsHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := assessment.SubmissionListOpts{
			AssessmentID: strings.TrimSpace(q.Get("assessment_id")),
			StudentID:    strings.TrimSpace(q.Get("student_id")),
			Status:       assessment.SubmissionStatus(strings.TrimSpace(q.Get("status"))),
			Limit:        parseIntDefault(q.Get("limit"), 50),
			Offset:       parseIntDefault(q.Get("offset"), 0),
		}
		scopeSubmissions(r, &opts)
		list, err := svc.Store().ListSubmissions(r.Context(), opts)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// loadSubmission fetches a submission the caller is allowed to see. Anything
// else reads as not found.
func loadSubmission(svc *assessment.Service, w http.ResponseWriter, r *http.Request) (assessment.Submission, bool) {
	s, err := svc.Store().GetSubmission(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return s, false
	}
	me := rbac.SubjectFromContext(r.Context())
	allowed := s.StudentID == me
	if !allowed && rbac.Can(r, rbac.PermSubmissionViewAll) {
		a, err := svc.Store().GetAssessment(r.Context(), s.AssessmentID)
		if err != nil && !errors.Is(err, assessment.ErrNotFound) {
			httpError(w, err)
			return s, false
		}
		allowed = err == nil && ownsAssessment(r, a)
	}
	if !allowed {
		http.Error(w, "not found", http.StatusNotFound)
		return s, false
	}
	return s, true
}

// GET /submissions/{id}
func GetSubmissionHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSubmission(svc, w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// POST /submissions/{id}/evaluate  { "grades": [{"points": 6, "feedback": "..."}], "feedback": "..." }
// Grades pair positionally with the submission's ungraded answers.
func EvaluateSubmissionHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := loadSubmission(svc, w, r)
		if !ok {
			return
		}
		var ev assessment.Evaluation
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		ev.EvaluatedBy = rbac.SubjectFromContext(r.Context())
		ev.EvaluatedAt = time.Now().UTC()
		out, err := svc.Evaluate(r.Context(), s.ID, ev)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /stats?assessment_id=
func StatsHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := assessment.SubmissionListOpts{
			AssessmentID: strings.TrimSpace(r.URL.Query().Get("assessment_id")),
		}
		scopeSubmissions(r, &opts)
		st, err := svc.Stats(r.Context(), opts)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}
