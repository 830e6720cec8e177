package storage

import (
	"context"
	"fmt"

	"csi-monitor/internal/csi"
)

// Recorder persists every rendered frame into one session
type Recorder struct {
	store   *SqliteStore
	session *Session
}

// NewRecorder opens a new session on the store
func NewRecorder(ctx context.Context, store *SqliteStore, source string, baudRate int) (*Recorder, error) {
	session, err := store.CreateSession(ctx, source, baudRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording session: %w", err)
	}
	return &Recorder{store: store, session: session}, nil
}

// Session returns the session being recorded
func (r *Recorder) Session() *Session {
	return r.session
}

// Render stores the frame
func (r *Recorder) Render(f *csi.Frame) error {
	return r.store.SaveFrame(context.Background(), r.session.ID, f)
}

// Close closes the underlying store
func (r *Recorder) Close() error {
	return r.store.Close()
}
