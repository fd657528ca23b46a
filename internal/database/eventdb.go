package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the database file created inside the database directory.
const FileName = "pagebeacon.db"

// ErrInvalidEvent is returned by InsertEvent for events missing a type or
// website.
var ErrInvalidEvent = errors.New("invalid event: type and website are required")

// EventDB stores collected beacon events.
type EventDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures EventDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so reports can read while the
	// collector writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates an EventDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is
// returned.
func Open(dbDir string, opts Options) (*EventDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run \"pagebeacon collect\" first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	edb := &EventDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := edb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return edb, nil
}

// Path returns the database file path.
func (edb *EventDB) Path() string {
	return edb.dbPath
}

// Close closes the database connection.
func (edb *EventDB) Close() error {
	return edb.db.Close()
}

func (edb *EventDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL,
		hostname TEXT,
		screen TEXT,
		language TEXT,
		title TEXT,
		url TEXT,
		referrer TEXT,
		tag TEXT,
		name TEXT NOT NULL DEFAULT '',
		data TEXT,
		received_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_website ON events(website);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_events_received ON events(received_at);
	`
	_, err := edb.db.ExecContext(context.Background(), schema)
	return err
}

// Event is one stored beacon request.
type Event struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	SessionID  string         `json:"sessionId,omitempty"`
	Website    string         `json:"website"`
	Hostname   string         `json:"hostname,omitempty"`
	Screen     string         `json:"screen,omitempty"`
	Language   string         `json:"language,omitempty"`
	Title      string         `json:"title,omitempty"`
	URL        string         `json:"url,omitempty"`
	Referrer   string         `json:"referrer,omitempty"`
	Tag        string         `json:"tag,omitempty"`
	Name       string         `json:"name,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	ReceivedAt time.Time      `json:"receivedAt"`
}

// IsPageView reports whether e is a page view: an event without a name.
func (e *Event) IsPageView() bool {
	return e.Type == "event" && e.Name == ""
}

// InsertEvent stores ev and returns its row id. A zero ReceivedAt is
// stamped with the current time.
func (edb *EventDB) InsertEvent(ctx context.Context, ev *Event) (int64, error) {
	if ev.Type == "" || ev.Website == "" {
		return 0, ErrInvalidEvent
	}

	var data sql.NullString
	if len(ev.Data) > 0 {
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize event data: %w", err)
		}
		data = sql.NullString{String: string(raw), Valid: true}
	}

	received := ev.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}

	query := `
	INSERT INTO events (type, session_id, website, hostname, screen, language, title, url, referrer, tag, name, data, received_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := edb.db.ExecContext(ctx, query,
		ev.Type, ev.SessionID, ev.Website, ev.Hostname, ev.Screen, ev.Language,
		ev.Title, ev.URL, ev.Referrer, ev.Tag, ev.Name, data,
		received.UTC().Format(timestampFormats[0]),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	return result.LastInsertId()
}

// ListEvents returns the most recent events first. An empty website lists
// every website; limit <= 0 means no limit.
func (edb *EventDB) ListEvents(ctx context.Context, website string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := `
	SELECT id, type, session_id, website, hostname, screen, language, title, url, referrer, tag, name, data, received_at
	FROM events
	WHERE (? = '' OR website = ?)
	ORDER BY id DESC
	LIMIT ?
	`
	rows, err := edb.db.QueryContext(ctx, query, website, website, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev                                               Event
			hostname, screen, language, title, url, referrer sql.NullString
			tag, data                                        sql.NullString
			received                                         string
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.SessionID, &ev.Website, &hostname, &screen, &language,
			&title, &url, &referrer, &tag, &ev.Name, &data, &received); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Hostname = hostname.String
		ev.Screen = screen.String
		ev.Language = language.String
		ev.Title = title.String
		ev.URL = url.String
		ev.Referrer = referrer.String
		ev.Tag = tag.String
		ev.ReceivedAt = parseTimestamp(received)
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &ev.Data); err != nil {
				return nil, fmt.Errorf("failed to parse data of event %d: %w", ev.ID, err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count is a key with the number of events it was seen in.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary aggregates the stored events of one website, or of all websites.
type Summary struct {
	Website    string    `json:"website,omitempty"`
	Total      int       `json:"total"`
	PageViews  int       `json:"pageViews"`
	Identifies int       `json:"identifies"`
	Sessions   int       `json:"sessions"`
	Websites   int       `json:"websites"`
	First      time.Time `json:"first"`
	Last       time.Time `json:"last"`
	TopPages   []Count   `json:"topPages"`
	TopEvents  []Count   `json:"topEvents"`
	Referrers  []Count   `json:"referrers"`
}

// Summarize aggregates events. An empty website summarizes every website.
func (edb *EventDB) Summarize(ctx context.Context, website string) (*Summary, error) {
	s := &Summary{Website: website}

	var first, last sql.NullString
	totals := `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN type = 'event' AND name = '' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN type = 'identify' THEN 1 ELSE 0 END), 0),
		COUNT(DISTINCT CASE WHEN session_id != '' THEN session_id END),
		COUNT(DISTINCT website),
		MIN(received_at),
		MAX(received_at)
	FROM events
	WHERE (? = '' OR website = ?)
	`
	if err := edb.db.QueryRowContext(ctx, totals, website, website).Scan(
		&s.Total, &s.PageViews, &s.Identifies, &s.Sessions, &s.Websites, &first, &last,
	); err != nil {
		return nil, fmt.Errorf("failed to summarize events: %w", err)
	}
	s.First = parseTimestamp(first.String)
	s.Last = parseTimestamp(last.String)

	var err error
	s.TopPages, err = edb.counts(ctx, "url", "type = 'event' AND name = '' AND url != ''", website)
	if err != nil {
		return nil, err
	}
	s.TopEvents, err = edb.counts(ctx, "name", "type = 'event' AND name != ''", website)
	if err != nil {
		return nil, err
	}
	s.Referrers, err = edb.counts(ctx, "referrer", "type = 'event' AND name = '' AND referrer != ''", website)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// counts groups matching events by column, most frequent first.
// column and cond are package constants, never user input.
func (edb *EventDB) counts(ctx context.Context, column, cond, website string) ([]Count, error) {
	query := fmt.Sprintf(`
	SELECT %s, COUNT(*) AS n
	FROM events
	WHERE %s AND (? = '' OR website = ?)
	GROUP BY %s
	ORDER BY n DESC, %s ASC
	`, column, cond, column, column)

	rows, err := edb.db.QueryContext(ctx, query, website, website)
	if err != nil {
		return nil, fmt.Errorf("failed to count events by %s: %w", column, err)
	}
	defer rows.Close()

	var counts []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp tries each of timestampFormats and returns the zero time
// when none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
