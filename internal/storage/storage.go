// Package storage records accepted CSI frames to SQLite so sessions can be
// replayed later.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	// Blind import support for sqlite3
	_ "github.com/mattn/go-sqlite3"

	"csi-monitor/internal/csi"
)

// ErrSessionNotFound is returned when replaying an unknown session
var ErrSessionNotFound = errors.New("session not found")

// Session describes one monitoring run
type Session struct {
	ID        string
	StartedAt time.Time
	Source    string
	BaudRate  int
	Frames    int64
}

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store for the database at dbPath. The database is
// opened and the schema created on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func (s *SqliteStore) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.dbErr = fmt.Errorf("opening database: %w", err)
			return
		}

		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.db = db
	})

	return s.db, s.dbErr
}

// CreateSession starts a new recording session
func (s *SqliteStore) CreateSession(ctx context.Context, source string, baudRate int) (*Session, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}

	session := &Session{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Source:    source,
		BaudRate:  baudRate,
	}

	if _, err := db.ExecContext(ctx, insertSessionSQL, session.ID, session.StartedAt.UnixNano(), session.Source, session.BaudRate); err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return session, nil
}

// SaveFrame stores one accepted frame under the session
func (s *SqliteStore) SaveFrame(ctx context.Context, sessionID string, f *csi.Frame) error {
	db, err := s.getDB()
	if err != nil {
		return fmt.Errorf("getting connection: %w", err)
	}

	samples, err := encodeSamples(f.Samples)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, insertFrameSQL, sessionID, int64(f.Seq), f.Time.UnixNano(), samples); err != nil {
		return fmt.Errorf("inserting frame %d: %w", f.Seq, err)
	}
	return nil
}

// Sessions lists all recorded sessions, oldest first
func (s *SqliteStore) Sessions(ctx context.Context) (sessions []Session, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			sess    Session
			started int64
		)
		if err = rows.Scan(&sess.ID, &started, &sess.Source, &sess.BaudRate, &sess.Frames); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.StartedAt = time.Unix(0, started)
		sessions = append(sessions, sess)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// Session looks up one session by ID
func (s *SqliteStore) Session(ctx context.Context, id string) (*Session, error) {
	sessions, err := s.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == id {
			return &sessions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// Frames returns a session's frames in capture order
func (s *SqliteStore) Frames(ctx context.Context, sessionID string) (frames []*csi.Frame, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}

	rows, err := db.QueryContext(ctx, selectFramesSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying frames: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			seq      int64
			captured int64
			raw      string
		)
		if err = rows.Scan(&seq, &captured, &raw); err != nil {
			return nil, fmt.Errorf("scanning frame: %w", err)
		}

		samples, decodeErr := decodeSamples(raw)
		if decodeErr != nil {
			err = fmt.Errorf("frame %d: %w", seq, decodeErr)
			return nil, err
		}
		frames = append(frames, csi.FrameFromSamples(uint64(seq), time.Unix(0, captured), samples))
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating frames: %w", err)
	}
	return frames, nil
}

// Close closes the database
func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}

// encodeSamples stores samples as a JSON array of [re, im] pairs
func encodeSamples(samples []csi.Sample) (string, error) {
	pairs := make([][2]float64, len(samples))
	for i, s := range samples {
		pairs[i] = [2]float64{s.Real, s.Imag}
	}
	p, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("marshaling samples: %w", err)
	}
	return string(p), nil
}

func decodeSamples(raw string) ([]csi.Sample, error) {
	var pairs [][2]float64
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("unmarshaling samples: %w", err)
	}
	samples := make([]csi.Sample, len(pairs))
	for i, p := range pairs {
		samples[i] = csi.Sample{Real: p[0], Imag: p[1]}
	}
	return samples, nil
}

type closer interface {
	Close() error
}

// closeWithError closes c and reports its error through err unless err is
// already set
func closeWithError(c closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
