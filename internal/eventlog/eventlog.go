package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event types recorded by the service.
const (
	UserLoggedIn        = "user_login"
	UserRegistered      = "user_registered"
	UserUpdated         = "user_updated"
	AssessmentCreated   = "assessment_created"
	AssessmentUpdated   = "assessment_updated"
	AssessmentDeleted   = "assessment_deleted"
	AssessmentSubmitted = "assessment_submitted"
	AssessmentEvaluated = "assessment_evaluated"
)

type Event struct {
	Seq       int64           `json:"seq"`
	SiteID    string          `json:"site_id"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Actor     string          `json:"actor,omitempty"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"created_at"`
}

// Appender is the write side, implemented by Repo.
type Appender interface {
	Append(ctx context.Context, e Event) error
}

type Repo struct {
	db     *sql.DB
	siteID string
}

func NewRepo(db *sql.DB, siteID string) *Repo {
	if siteID == "" {
		siteID = "local"
	}
	return &Repo{db: db, siteID: siteID}
}

func (r *Repo) Append(ctx context.Context, e Event) error {
	data := string(e.Data)
	if data == "" {
		data = "{}"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, actor, data, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		r.siteID, e.Type, e.Key, e.Actor, data, time.Now().Unix())
	return err
}

type ListOpts struct {
	Type  string
	After int64 // only events with seq > After
	Limit int
}

// List returns events newest first.
func (r *Repo) List(ctx context.Context, opts ListOpts) ([]Event, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var (
		rows *sql.Rows
		err  error
	)
	if opts.Type == "" {
		rows, err = r.db.QueryContext(ctx, `SELECT seq,site_id,typ,key,actor,data,created_at FROM event_log
			WHERE seq > $1 ORDER BY seq DESC LIMIT $2`, opts.After, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, `SELECT seq,site_id,typ,key,actor,data,created_at FROM event_log
			WHERE seq > $1 AND typ = $2 ORDER BY seq DESC LIMIT $3`, opts.After, opts.Type, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		var data string
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.Actor, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}

// JSON marshals v for Event.Data, falling back to an empty object.
func JSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
