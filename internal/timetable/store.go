package timetable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"meetbot/internal/botlog"
)

// Store is durable storage for timetable entries.
type Store interface {
	CreateIfAbsent(ctx context.Context) error
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
	NextDue(ctx context.Context, day Day, after Clock) (Entry, bool, error)
	Close() error
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS timetable(
	team_name TEXT,
	meeting_name TEXT,
	start_time TEXT,
	end_time TEXT,
	day TEXT
)`

// dayOrderSQL sorts the day column by weekday rather than alphabetically.
const dayOrderSQL = `CASE day
	WHEN 'monday' THEN 1 WHEN 'tuesday' THEN 2 WHEN 'wednesday' THEN 3
	WHEN 'thursday' THEN 4 WHEN 'friday' THEN 5 WHEN 'saturday' THEN 6
	WHEN 'sunday' THEN 7 ELSE 8 END`

type SQLiteStore struct {
	path string
	db   *sql.DB
	log  *botlog.Logger
}

// OpenSQLite opens (without creating the table) the timetable database.
func OpenSQLite(path string, log *botlog.Logger) (*SQLiteStore, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("timetable path is empty")
	}
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", p)
	if err != nil {
		return nil, fmt.Errorf("open timetable %s: %w", p, err)
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{path: p, db: db, log: log}, nil
}

// Exists reports whether the database file is already present.
func Exists(path string) bool {
	info, err := os.Stat(strings.TrimSpace(path))
	return err == nil && !info.IsDir()
}

func (s *SQLiteStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *SQLiteStore) CreateIfAbsent(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create timetable table: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timetable VALUES (?, ?, ?, ?, ?)`,
		e.Team, e.Meeting, e.Start.String(), e.End.String(), e.Day.String(),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT team_name, meeting_name, start_time, end_time, day FROM timetable ORDER BY `+dayOrderSQL+`, start_time`)
	if err != nil {
		return nil, fmt.Errorf("list timetable: %w", err)
	}
	defer rows.Close()

	out, err := s.scan(rows)
	if err != nil {
		return nil, err
	}
	// Malformed start_time text can defeat the SQL ordering.
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out, nil
}

func (s *SQLiteStore) NextDue(ctx context.Context, day Day, after Clock) (Entry, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT team_name, meeting_name, start_time, end_time, day FROM timetable WHERE day = ? AND start_time > ? ORDER BY start_time ASC`,
		day.String(), after.String())
	if err != nil {
		return Entry{}, false, fmt.Errorf("next due: %w", err)
	}
	defer rows.Close()

	entries, err := s.scan(rows)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.Start.After(after) {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (s *SQLiteStore) scan(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var team, meeting, start, end, day sql.NullString
		if err := rows.Scan(&team, &meeting, &start, &end, &day); err != nil {
			return nil, fmt.Errorf("scan timetable row: %w", err)
		}
		e, err := NewEntry(team.String, meeting.String, start.String, end.String, day.String)
		if err != nil {
			s.log.Logf(botlog.KindWarn, "skipping timetable row (%s, %s, %s-%s, %s): %v",
				team.String, meeting.String, start.String, end.String, day.String, err)
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read timetable: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
