package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    started_at INTEGER NOT NULL,
    source     TEXT    NOT NULL,
    baud_rate  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS frames (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT    NOT NULL REFERENCES sessions (id),
    seq         INTEGER NOT NULL,
    captured_at INTEGER NOT NULL,
    samples     TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_frames_session_seq ON frames (session_id, seq);`

	insertSessionSQL = `
INSERT INTO sessions (id,
                      started_at,
                      source,
                      baud_rate)
VALUES (?, ?, ?, ?)`

	selectSessionsSQL = `
SELECT s.id,
       s.started_at,
       s.source,
       s.baud_rate,
       COUNT(f.id)
FROM sessions s
         LEFT JOIN frames f ON f.session_id = s.id
GROUP BY s.id
ORDER BY s.started_at`

	insertFrameSQL = `
INSERT INTO frames (session_id,
                    seq,
                    captured_at,
                    samples)
VALUES (?, ?, ?, ?)`

	selectFramesSQL = `
SELECT seq,
       captured_at,
       samples
FROM frames
WHERE session_id = ?
ORDER BY seq`
)
