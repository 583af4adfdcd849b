// Package sqlite provides SQLite-backed persistence for conversation turns,
// the partner event log, and partner links.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	chatmodel "github.com/hamdamapp/backend/internal/model/chat"
	"github.com/hamdamapp/backend/internal/model/event"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	channel    TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_owner_channel ON conversation_turns(owner_id, channel);

CREATE TABLE IF NOT EXISTS partner_events (
	id              TEXT PRIMARY KEY,
	sender_id       TEXT NOT NULL,
	receiver_id     TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	payload         TEXT NOT NULL DEFAULT '',
	is_acknowledged INTEGER NOT NULL DEFAULT 0,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_receiver ON partner_events(receiver_id, is_acknowledged);

CREATE TABLE IF NOT EXISTS partner_links (
	user_a TEXT NOT NULL,
	user_b TEXT NOT NULL,
	PRIMARY KEY (user_a, user_b)
);
`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store wraps one SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendTurn inserts one finalized conversation turn.
func (s *Store) AppendTurn(ctx context.Context, turn chatmodel.Turn) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_turns (id, owner_id, channel, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.OwnerID, string(turn.Channel), string(turn.Role), turn.Content, toMillis(turn.CreatedAt))
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// ListTurns returns turns for the owner and channel, oldest first. A positive
// limit keeps only the most recent turns (still returned oldest first).
func (s *Store) ListTurns(ctx context.Context, ownerID string, channel chatmodel.Channel, limit int) ([]chatmodel.Turn, error) {
	query := `SELECT id, owner_id, channel, role, content, created_at
		FROM conversation_turns WHERE owner_id = ? AND channel = ? ORDER BY rowid`
	args := []any{ownerID, string(channel)}
	if limit > 0 {
		query = `SELECT id, owner_id, channel, role, content, created_at FROM (
			SELECT rowid AS rid, id, owner_id, channel, role, content, created_at
			FROM conversation_turns WHERE owner_id = ? AND channel = ?
			ORDER BY rid DESC LIMIT ?
		) ORDER BY rid`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []chatmodel.Turn
	for rows.Next() {
		var turn chatmodel.Turn
		var channelRaw, roleRaw string
		var createdAt int64
		if err := rows.Scan(&turn.ID, &turn.OwnerID, &channelRaw, &roleRaw, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Channel = chatmodel.Channel(channelRaw)
		turn.Role = chatmodel.Role(roleRaw)
		turn.CreatedAt = fromMillis(createdAt)
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// ClearTurns deletes the owner's history for one channel.
func (s *Store) ClearTurns(ctx context.Context, ownerID string, channel chatmodel.Channel) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_turns WHERE owner_id = ? AND channel = ?`,
		ownerID, string(channel))
	if err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	return nil
}

// AppendEvent inserts one partner event. The insert is atomic: either the
// whole record lands or nothing does.
func (s *Store) AppendEvent(ctx context.Context, ev event.PartnerEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO partner_events (id, sender_id, receiver_id, event_type, payload, is_acknowledged, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SenderID, ev.ReceiverID, string(ev.Type), string(ev.Payload), boolToInt(ev.IsAcknowledged), toMillis(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListUnacknowledged returns the receiver's unacknowledged events in append
// order. Used by the catch-up pull after (re)connection.
func (s *Store) ListUnacknowledged(ctx context.Context, receiverID string) ([]event.PartnerEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, event_type, payload, is_acknowledged, created_at
		 FROM partner_events WHERE receiver_id = ? AND is_acknowledged = 0 ORDER BY rowid`,
		receiverID)
	if err != nil {
		return nil, fmt.Errorf("list unacknowledged events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// AcknowledgeEvent flips is_acknowledged false→true. Only the receiver may
// acknowledge, and a repeat acknowledgement is a no-op.
func (s *Store) AcknowledgeEvent(ctx context.Context, id, receiverID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE partner_events SET is_acknowledged = 1
		 WHERE id = ? AND receiver_id = ? AND is_acknowledged = 0`,
		id, receiverID)
	if err != nil {
		return fmt.Errorf("acknowledge event: %w", err)
	}
	return nil
}

// SaveLink records a symmetric partner link.
func (s *Store) SaveLink(ctx context.Context, link event.Link) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO partner_links (user_a, user_b) VALUES (?, ?)`,
		link.UserA, link.UserB)
	if err != nil {
		return fmt.Errorf("save link: %w", err)
	}
	return nil
}

// PartnerOf resolves the linked partner for a user, in either direction.
func (s *Store) PartnerOf(ctx context.Context, userID string) (string, bool, error) {
	var partner string
	err := s.db.QueryRowContext(ctx,
		`SELECT CASE WHEN user_a = ? THEN user_b ELSE user_a END
		 FROM partner_links WHERE user_a = ? OR user_b = ? LIMIT 1`,
		userID, userID, userID).Scan(&partner)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("resolve partner: %w", err)
	}
	return partner, true, nil
}

func scanEvents(rows *sql.Rows) ([]event.PartnerEvent, error) {
	var events []event.PartnerEvent
	for rows.Next() {
		var ev event.PartnerEvent
		var typeRaw, payload string
		var acked int
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.SenderID, &ev.ReceiverID, &typeRaw, &payload, &acked, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = event.Type(typeRaw)
		if payload != "" {
			ev.Payload = []byte(payload)
		}
		ev.IsAcknowledged = acked != 0
		ev.CreatedAt = fromMillis(createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
