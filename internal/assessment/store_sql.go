package assessment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLStore persists assessments and submissions through database/sql.
// Questions, enrollment and answers are stored as JSON text columns.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const assessmentCols = `id,title,description,subject,instructor_id,instructor_name,kind,duration_minutes,
	passing_score,difficulty,status,scheduled_at,deadline,questions_json,enrolled_json,created_at`

func (s *SQLStore) CreateAssessment(ctx context.Context, a Assessment) (Assessment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	qj, ej, err := marshalAssessmentJSON(a)
	if err != nil {
		return Assessment{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO assessments (`+assessmentCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		a.ID, a.Title, a.Description, a.Subject, a.InstructorID, a.InstructorName, string(a.Kind),
		a.DurationMinutes, a.PassingScore, a.Difficulty, string(a.Status),
		unixOrNil(a.ScheduledAt), unixOrNil(a.Deadline), qj, ej, a.CreatedAt.Unix())
	if err != nil {
		return Assessment{}, fmt.Errorf("insert assessment: %w", err)
	}
	return a, nil
}

func (s *SQLStore) GetAssessment(ctx context.Context, id string) (Assessment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assessmentCols+` FROM assessments WHERE id=$1`, id)
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Assessment{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) ListAssessments(ctx context.Context, opts ListOpts) ([]Assessment, error) {
	var w where
	if opts.InstructorID != "" {
		w.add("instructor_id=?", opts.InstructorID)
	}
	if opts.Status != "" {
		w.add("status=?", string(opts.Status))
	}
	if q := strings.ToLower(strings.TrimSpace(opts.Q)); q != "" {
		like := "%" + q + "%"
		w.add("(LOWER(title) LIKE ? OR LOWER(subject) LIKE ?)", like, like)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+assessmentCols+` FROM assessments`+w.sql()+
		` ORDER BY created_at DESC, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		// enrollment lives in a JSON column, so filter it here
		if opts.StudentID != "" && !a.IsEnrolled(opts.StudentID) {
			continue
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page(out, opts.Limit, opts.Offset), nil
}

func (s *SQLStore) UpdateAssessment(ctx context.Context, id string, p Patch) (Assessment, error) {
	a, err := s.GetAssessment(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	a = p.Apply(a)
	qj, ej, err := marshalAssessmentJSON(a)
	if err != nil {
		return Assessment{}, err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE assessments SET title=$1, description=$2, subject=$3, kind=$4,
		duration_minutes=$5, passing_score=$6, difficulty=$7, status=$8, scheduled_at=$9, deadline=$10,
		questions_json=$11, enrolled_json=$12 WHERE id=$13`,
		a.Title, a.Description, a.Subject, string(a.Kind), a.DurationMinutes, a.PassingScore, a.Difficulty,
		string(a.Status), unixOrNil(a.ScheduledAt), unixOrNil(a.Deadline), qj, ej, id)
	if err != nil {
		return Assessment{}, fmt.Errorf("update assessment: %w", err)
	}
	return a, nil
}

func (s *SQLStore) DeleteAssessment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assessments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const submissionCols = `id,assessment_id,student_id,student_name,status,total_score,max_score,percentage,
	time_taken_seconds,auto_submitted,answers_json,submitted_at,instructor_feedback,evaluated_by,evaluated_at`

func (s *SQLStore) CreateSubmission(ctx context.Context, sub Submission) (Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = s.now()
	}
	aj, err := json.Marshal(sub.Answers)
	if err != nil {
		return Submission{}, err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO submissions (`+submissionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		sub.ID, sub.AssessmentID, sub.StudentID, sub.StudentName, string(sub.Status), sub.TotalScore,
		sub.MaxScore, sub.Percentage, sub.TimeTakenSeconds, boolInt(sub.AutoSubmitted), string(aj),
		sub.SubmittedAt.Unix(), sub.InstructorFeedback, sub.EvaluatedBy, unixOrNil(sub.EvaluatedAt))
	if err != nil {
		return Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionCols+` FROM submissions WHERE id=$1`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, ErrNotFound
	}
	return sub, err
}

func (s *SQLStore) ListSubmissions(ctx context.Context, opts SubmissionListOpts) ([]Submission, error) {
	var w where
	if opts.AssessmentID != "" {
		w.add("assessment_id=?", opts.AssessmentID)
	}
	if opts.StudentID != "" {
		w.add("student_id=?", opts.StudentID)
	}
	if opts.Status != "" {
		w.add("status=?", string(opts.Status))
	}
	if opts.InstructorID != "" {
		w.add("assessment_id IN (SELECT id FROM assessments WHERE instructor_id=?)", opts.InstructorID)
	}
	limit, offset := clampPage(opts.Limit, opts.Offset)
	args := append(w.args, limit, offset)
	q := `SELECT ` + submissionCols + ` FROM submissions` + w.sql() +
		fmt.Sprintf(` ORDER BY submitted_at DESC, id LIMIT $%d OFFSET $%d`, len(w.args)+1, len(w.args)+2)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateSubmission(ctx context.Context, sub Submission) (Submission, error) {
	aj, err := json.Marshal(sub.Answers)
	if err != nil {
		return Submission{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET status=$1, total_score=$2, percentage=$3,
		answers_json=$4, instructor_feedback=$5, evaluated_by=$6, evaluated_at=$7 WHERE id=$8`,
		string(sub.Status), sub.TotalScore, sub.Percentage, string(aj), sub.InstructorFeedback,
		sub.EvaluatedBy, unixOrNil(sub.EvaluatedAt), sub.ID)
	if err != nil {
		return Submission{}, fmt.Errorf("update submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Submission{}, ErrNotFound
	}
	return sub, nil
}

// --- scanning helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanAssessment(r scanner) (Assessment, error) {
	var (
		a                   Assessment
		kind, status        string
		scheduled, deadline sql.NullInt64
		qjson, ejson        string
		created             int64
	)
	if err := r.Scan(&a.ID, &a.Title, &a.Description, &a.Subject, &a.InstructorID, &a.InstructorName,
		&kind, &a.DurationMinutes, &a.PassingScore, &a.Difficulty, &status, &scheduled, &deadline,
		&qjson, &ejson, &created); err != nil {
		return Assessment{}, err
	}
	a.Kind = Kind(kind)
	a.Status = Status(status)
	a.ScheduledAt = timeOrNil(scheduled)
	a.Deadline = timeOrNil(deadline)
	a.CreatedAt = time.Unix(created, 0).UTC()
	if err := json.Unmarshal([]byte(qjson), &a.Questions); err != nil {
		return Assessment{}, fmt.Errorf("assessment %s: questions: %w", a.ID, err)
	}
	if ejson != "" {
		if err := json.Unmarshal([]byte(ejson), &a.EnrolledStudents); err != nil {
			return Assessment{}, fmt.Errorf("assessment %s: enrollment: %w", a.ID, err)
		}
	}
	return a, nil
}

func scanSubmission(r scanner) (Submission, error) {
	var (
		sub       Submission
		status    string
		auto      int
		ajson     string
		submitted int64
		evaluated sql.NullInt64
	)
	if err := r.Scan(&sub.ID, &sub.AssessmentID, &sub.StudentID, &sub.StudentName, &status, &sub.TotalScore,
		&sub.MaxScore, &sub.Percentage, &sub.TimeTakenSeconds, &auto, &ajson, &submitted,
		&sub.InstructorFeedback, &sub.EvaluatedBy, &evaluated); err != nil {
		return Submission{}, err
	}
	sub.Status = SubmissionStatus(status)
	sub.AutoSubmitted = auto != 0
	sub.SubmittedAt = time.Unix(submitted, 0).UTC()
	sub.EvaluatedAt = timeOrNil(evaluated)
	if err := json.Unmarshal([]byte(ajson), &sub.Answers); err != nil {
		return Submission{}, fmt.Errorf("submission %s: answers: %w", sub.ID, err)
	}
	return sub, nil
}

func marshalAssessmentJSON(a Assessment) (questions, enrolled string, err error) {
	qs := a.Questions
	if qs == nil {
		qs = []Question{}
	}
	qb, err := json.Marshal(qs)
	if err != nil {
		return "", "", err
	}
	es := a.EnrolledStudents
	if es == nil {
		es = []string{}
	}
	eb, err := json.Marshal(es)
	if err != nil {
		return "", "", err
	}
	return string(qb), string(eb), nil
}

// where accumulates AND-ed conditions, rewriting ? to $N placeholders.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
