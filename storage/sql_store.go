package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"property-finder/models"
	"property-finder/observe"
	"property-finder/utils"
)

// Supported driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		session_id  TEXT PRIMARY KEY,
		search_date TEXT NOT NULL,
		total       INTEGER NOT NULL DEFAULT 0,
		keywords    TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE TABLE IF NOT EXISTS results (
		session_id  TEXT NOT NULL,
		position    INTEGER NOT NULL,
		name        TEXT NOT NULL,
		location    TEXT NOT NULL DEFAULT '',
		price       DOUBLE PRECISION,
		currency    TEXT NOT NULL DEFAULT '',
		rating      DOUBLE PRECISION,
		url         TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		match_score DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (session_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS steps (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		event       TEXT NOT NULL,
		input       TEXT NOT NULL DEFAULT '',
		output      TEXT NOT NULL DEFAULT '',
		properties  TEXT NOT NULL DEFAULT '{}',
		created_at  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS signals (
		id          TEXT PRIMARY KEY,
		step_id     TEXT NOT NULL,
		session_id  TEXT NOT NULL,
		name        TEXT NOT NULL,
		sentiment   TEXT NOT NULL,
		properties  TEXT NOT NULL DEFAULT '{}',
		created_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_steps_created   ON steps(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_steps_session   ON steps(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_created ON signals(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_results_score   ON results(match_score)`,
}

// SQLStore persists runs, ranked results and observability events to
// PostgreSQL or SQLite.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *utils.Logger
}

// NewSQLStore opens the database, waits for it to answer and migrates the
// schema. For SQLite, dsn is a file path whose directory is created.
func NewSQLStore(ctx context.Context, driver, dsn string, logger *utils.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("sqlite: create dir: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	retry := utils.RetryConfig{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, Logger: logger}
	if err := retry.Do(ctx, driver+" ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLStore{db: db, driver: driver, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", driver, err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Write stores the run and replaces any results already stored for it.
func (s *SQLStore) Write(ctx context.Context, doc *models.ResultDocument) error {
	keywords, err := json.Marshal(doc.Keywords)
	if err != nil {
		return fmt.Errorf("%s: encode keywords: %w", s.driver, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.driver, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (session_id, search_date, total, keywords)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE
		SET search_date = excluded.search_date, total = excluded.total, keywords = excluded.keywords
	`), doc.SessionID, doc.SearchDate, doc.Total, string(keywords)); err != nil {
		return fmt.Errorf("%s: upsert run: %w", s.driver, err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM results WHERE session_id = ?`), doc.SessionID); err != nil {
		return fmt.Errorf("%s: clear results: %w", s.driver, err)
	}

	const batchSize = 50
	for i := 0; i < len(doc.Results); i += batchSize {
		end := min(i+batchSize, len(doc.Results))
		if err := s.insertBatch(ctx, tx, doc.SessionID, i, doc.Results[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.driver, err)
	}
	return nil
}

func (s *SQLStore) insertBatch(ctx context.Context, tx *sql.Tx, sessionID string, offset int, batch []models.ScoredListing) error {
	const cols = 10
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*cols)

	for idx, l := range batch {
		valueStrings = append(valueStrings, "(?,?,?,?,?,?,?,?,?,?)")
		valueArgs = append(valueArgs,
			sessionID, offset+idx+1, l.Name, l.Location, nullable(l.Price), l.Currency,
			nullable(l.Rating), l.URL, l.Description, l.Score)
	}

	query := fmt.Sprintf(`
		INSERT INTO results (session_id, position, name, location, price, currency, rating, url, description, match_score)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, s.rebind(query), valueArgs...); err != nil {
		return fmt.Errorf("%s: insert results: %w", s.driver, err)
	}
	return nil
}

// LoadRun reads a stored run back into a result document.
func (s *SQLStore) LoadRun(ctx context.Context, sessionID string) (*models.ResultDocument, error) {
	doc := &models.ResultDocument{SessionID: sessionID, Results: []models.ScoredListing{}}
	var keywords string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT search_date, total, keywords FROM runs WHERE session_id = ?
	`), sessionID).Scan(&doc.SearchDate, &doc.Total, &keywords)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: load run: %w", s.driver, err)
	}
	if err := json.Unmarshal([]byte(keywords), &doc.Keywords); err != nil {
		return nil, fmt.Errorf("%s: decode keywords: %w", s.driver, err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT name, location, price, currency, rating, url, description, match_score
		FROM results
		WHERE session_id = ?
		ORDER BY position
	`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: load results: %w", s.driver, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l             models.ScoredListing
			price, rating sql.NullFloat64
		)
		if err := rows.Scan(&l.Name, &l.Location, &price, &l.Currency, &rating,
			&l.URL, &l.Description, &l.Score); err != nil {
			return nil, fmt.Errorf("%s: scan result: %w", s.driver, err)
		}
		if price.Valid {
			l.Price = &price.Float64
		}
		if rating.Valid {
			l.Rating = &rating.Float64
		}
		doc.Results = append(doc.Results, l)
	}
	return doc, rows.Err()
}

// RecordStep implements observe.Sink.
func (s *SQLStore) RecordStep(ctx context.Context, st observe.Step) error {
	props, err := encodeProps(st.Properties)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO steps (id, session_id, event, input, output, properties, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`), st.ID, st.SessionID, st.Event, st.Input, st.Output, props, formatTime(st.At))
	if err != nil {
		return fmt.Errorf("%s: record step: %w", s.driver, err)
	}
	return nil
}

// RecordSignal implements observe.Sink.
func (s *SQLStore) RecordSignal(ctx context.Context, sig observe.Signal) error {
	props, err := encodeProps(sig.Properties)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO signals (id, step_id, session_id, name, sentiment, properties, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`), sig.ID, sig.StepID, sig.SessionID, sig.Name, string(sig.Sentiment), props, formatTime(sig.At))
	if err != nil {
		return fmt.Errorf("%s: record signal: %w", s.driver, err)
	}
	return nil
}

// RecentSteps returns up to limit steps, newest first.
func (s *SQLStore) RecentSteps(ctx context.Context, limit int) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, session_id, event, input, output, properties, created_at
		FROM steps
		ORDER BY created_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("%s: query steps: %w", s.driver, err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var r EventRecord
		var props, at string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Event, &r.Input, &r.Output, &props, &at); err != nil {
			return nil, fmt.Errorf("%s: scan step: %w", s.driver, err)
		}
		r.StepID = r.ID
		r.Properties = decodeProps(props)
		r.At = parseTime(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentSignals returns up to limit signals with the given sentiment,
// newest first, joined with the step they annotate.
func (s *SQLStore) RecentSignals(ctx context.Context, sentiment observe.Sentiment, limit int) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT g.id, g.step_id, g.session_id, g.name, g.sentiment, g.properties, g.created_at,
		       COALESCE(st.event, ''), COALESCE(st.input, ''), COALESCE(st.output, '')
		FROM signals g
		LEFT JOIN steps st ON st.id = g.step_id
		WHERE g.sentiment = ?
		ORDER BY g.created_at DESC
		LIMIT ?
	`), string(sentiment), limit)
	if err != nil {
		return nil, fmt.Errorf("%s: query signals: %w", s.driver, err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var r EventRecord
		var sent, props, at string
		if err := rows.Scan(&r.ID, &r.StepID, &r.SessionID, &r.Signal, &sent, &props, &at,
			&r.Event, &r.Input, &r.Output); err != nil {
			return nil, fmt.Errorf("%s: scan signal: %w", s.driver, err)
		}
		r.Sentiment = observe.Sentiment(sent)
		r.Properties = decodeProps(props)
		r.At = parseTime(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullable(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func encodeProps(props map[string]any) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(data), nil
}

func decodeProps(s string) map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
