// Package http exposes the assessment service over a chi router.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-assess/internal/account"
	"github.com/mind-engage/mindengage-assess/internal/assessment"
	"github.com/mind-engage/mindengage-assess/internal/grading"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
	"github.com/mind-engage/mindengage-assess/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

// httpError maps domain errors onto status codes.
func httpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, assessment.ErrNotFound),
		errors.Is(err, account.ErrNotFound),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrUnknownQuestion):
		status = http.StatusNotFound
	case errors.Is(err, assessment.ErrInvalid),
		errors.Is(err, assessment.ErrInvalidGrade),
		errors.Is(err, assessment.ErrGradeCountMismatch),
		errors.Is(err, account.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, assessment.ErrAlreadyEvaluated),
		errors.Is(err, account.ErrEmailTaken),
		errors.Is(err, session.ErrAlreadyActive),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, session.ErrNotOpen):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNotEnrolled):
		status = http.StatusForbidden
	case errors.Is(err, grading.ErrMalformedQuestion):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}

func isStudent(r *http.Request) bool {
	return rbac.RoleFromContext(r.Context()) == string(account.RoleStudent)
}

// ownsAssessment reports whether the caller may manage a.
func ownsAssessment(r *http.Request, a assessment.Assessment) bool {
	if rbac.Can(r, rbac.PermAssessmentEditAny) {
		return true
	}
	return rbac.Can(r, rbac.PermAssessmentEditOwn) && a.InstructorID == rbac.SubjectFromContext(r.Context())
}
