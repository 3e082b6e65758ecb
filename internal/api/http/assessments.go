package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-assess/internal/assessment"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
)

// GET /assessments?q=&status=&limit=50&offset=0
// Students see active assessments they are enrolled in, without answer keys.
// Instructors see their own; admins see everything.
func ListAssessmentsHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := assessment.ListOpts{
			Q:      strings.TrimSpace(r.URL.Query().Get("q")),
			Status: assessment.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		sub := rbac.SubjectFromContext(r.Context())
		student := isStudent(r)
		switch {
		case student:
			opts.Status = assessment.StatusActive
			opts.StudentID = sub
		case !rbac.Can(r, rbac.PermAssessmentEditAny):
			opts.InstructorID = sub
		}

		list, err := svc.Store().ListAssessments(r.Context(), opts)
		if err != nil {
			httpError(w, err)
			return
		}
		if student {
			for i := range list {
				list[i] = list[i].Redacted()
			}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /assessments
func CreateAssessmentHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a assessment.Assessment
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		p, _ := rbac.PrincipalFromContext(r.Context())
		a.ID = ""
		out, err := svc.Create(r.Context(), p.Subject, p.Name, a)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

// GET /assessments/{id}
func GetAssessmentHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Store().GetAssessment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			httpError(w, err)
			return
		}
		if isStudent(r) {
			// hide drafts and other classes' work behind a 404
			if a.Status != assessment.StatusActive || !a.IsEnrolled(rbac.SubjectFromContext(r.Context())) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, a.Redacted())
			return
		}
		if !ownsAssessment(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// PATCH /assessments/{id}
func UpdateAssessmentHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var p assessment.Patch
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		cur, err := svc.Store().GetAssessment(r.Context(), id)
		if err != nil {
			httpError(w, err)
			return
		}
		if !ownsAssessment(r, cur) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		out, err := svc.Update(r.Context(), rbac.SubjectFromContext(r.Context()), id, p)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// DELETE /assessments/{id}
func DeleteAssessmentHandler(svc *assessment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		cur, err := svc.Store().GetAssessment(r.Context(), id)
		if err != nil {
			httpError(w, err)
			return
		}
		if !ownsAssessment(r, cur) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := svc.Delete(r.Context(), rbac.SubjectFromContext(r.Context()), id); err != nil {
			httpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
