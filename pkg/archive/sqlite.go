// Package archive keeps local snapshots of conversation views, either in a
// SQLite database or as JSON documents.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/go-go-golems/shinkai/pkg/conversation"
)

//go:embed schema.sql
var schemaSQL string

// ErrInboxNotFound is returned when no snapshot exists for an inbox.
var ErrInboxNotFound = errors.New("archive: inbox not found")

// Metadata summarizes one stored snapshot.
type Metadata struct {
	InboxID           string    `json:"inbox_id" yaml:"inbox_id"`
	MessageCount      int       `json:"message_count" yaml:"message_count"`
	LatestMessageTime time.Time `json:"latest_message_time" yaml:"latest_message_time"`
	SavedAt           time.Time `json:"saved_at" yaml:"saved_at"`
}

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path, creating its directory.
func Open(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "could not create %s", dir)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid time %q", s)
	}
	return t, nil
}

// Save replaces the snapshot of inboxID with msgs, in order.
func (s *SQLiteStore) Save(ctx context.Context, inboxID string, msgs []conversation.Message) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO inboxes (inbox_id, saved_at) VALUES (?, ?)
		 ON CONFLICT(inbox_id) DO UPDATE SET saved_at = excluded.saved_at;`,
		inboxID, formatTime(s.now()))
	if err != nil {
		return errors.Wrap(err, "failed to save inbox")
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE inbox_id = ?;`, inboxID)
	if err != nil {
		return errors.Wrap(err, "failed to clear messages")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (inbox_id, sequence_number, hash, content, sender, is_local, timestamp, parent_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare insert")
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i, m := range msgs {
		_, err = stmt.ExecContext(ctx, inboxID, i, m.Hash, m.Content, m.Sender, m.IsLocal, formatTime(m.Timestamp), m.ParentHash)
		if err != nil {
			return errors.Wrapf(err, "failed to insert message %s", m.Hash)
		}
	}

	return tx.Commit()
}

// Load returns the messages of the snapshot of inboxID, in the order they
// were saved.
func (s *SQLiteStore) Load(ctx context.Context, inboxID string) ([]conversation.Message, error) {
	var savedAt string
	err := s.db.QueryRowContext(ctx, `SELECT saved_at FROM inboxes WHERE inbox_id = ?;`, inboxID).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrInboxNotFound, "%s", inboxID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query inbox")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, content, sender, is_local, timestamp, parent_hash
		 FROM messages WHERE inbox_id = ? ORDER BY sequence_number ASC;`, inboxID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query messages")
	}
	defer func() {
		_ = rows.Close()
	}()

	ret := []conversation.Message{}
	for rows.Next() {
		var m conversation.Message
		var ts string
		if err := rows.Scan(&m.Hash, &m.Content, &m.Sender, &m.IsLocal, &ts, &m.ParentHash); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		ret = append(ret, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read messages")
	}
	return ret, nil
}

// List returns every snapshot, the one with the newest message first.
func (s *SQLiteStore) List(ctx context.Context) ([]Metadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			i.inbox_id,
			i.saved_at,
			COUNT(m.id) AS message_count,
			COALESCE(MAX(m.timestamp), '') AS latest_message_at
		FROM
			inboxes i
		LEFT JOIN
			messages m ON i.inbox_id = m.inbox_id
		GROUP BY
			i.inbox_id
		ORDER BY
			latest_message_at DESC, i.inbox_id ASC;`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query inboxes")
	}
	defer func() {
		_ = rows.Close()
	}()

	ret := []Metadata{}
	for rows.Next() {
		var meta Metadata
		var savedAt, latest string
		if err := rows.Scan(&meta.InboxID, &savedAt, &meta.MessageCount, &latest); err != nil {
			return nil, errors.Wrap(err, "failed to scan inbox metadata")
		}
		if meta.SavedAt, err = parseTime(savedAt); err != nil {
			return nil, err
		}
		if meta.LatestMessageTime, err = parseTime(latest); err != nil {
			return nil, err
		}
		ret = append(ret, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read inboxes")
	}
	return ret, nil
}

// Delete removes the snapshot of inboxID.
func (s *SQLiteStore) Delete(ctx context.Context, inboxID string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE inbox_id = ?;`, inboxID); err != nil {
		return errors.Wrap(err, "failed to delete messages")
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM inboxes WHERE inbox_id = ?;`, inboxID)
	if err != nil {
		return errors.Wrap(err, "failed to delete inbox")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = errors.Wrapf(ErrInboxNotFound, "%s", inboxID)
		return err
	}
	return tx.Commit()
}
