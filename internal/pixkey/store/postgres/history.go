package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pixkeys/internal/pixkey/models"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/platform/tx"
)

type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Create(ctx context.Context, entry *models.KeyHistory) error {
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("encode history snapshot: %w", err)
	}
	_, err = tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pix_key_history (id, key_id, state, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(entry.ID), uuid.UUID(entry.KeyID), string(entry.State), string(snapshot), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create key history: %w", err)
	}
	return nil
}

// ListByKeyID returns the entries of a key in insertion order.
func (s *HistoryStore) ListByKeyID(ctx context.Context, keyID id.KeyID) ([]*models.KeyHistory, error) {
	rows, err := tx.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, key_id, state, snapshot, created_at
		FROM pix_key_history
		WHERE key_id = $1
		ORDER BY seq
	`, uuid.UUID(keyID))
	if err != nil {
		return nil, fmt.Errorf("list key history: %w", err)
	}
	defer rows.Close()

	var out []*models.KeyHistory
	for rows.Next() {
		var (
			entry        models.KeyHistory
			entryID, kid uuid.UUID
			state        string
			snapshot     []byte
		)
		if err := rows.Scan(&entryID, &kid, &state, &snapshot, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("list key history: %w", err)
		}
		entry.ID = id.HistoryID(entryID)
		entry.KeyID = id.KeyID(kid)
		entry.State = models.KeyState(state)
		if err := json.Unmarshal(snapshot, &entry.Snapshot); err != nil {
			return nil, fmt.Errorf("decode history snapshot: %w", err)
		}
		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list key history: %w", err)
	}
	return out, nil
}

type VerificationStore struct {
	db *sql.DB
}

func NewVerificationStore(db *sql.DB) *VerificationStore {
	return &VerificationStore{db: db}
}

func (s *VerificationStore) Create(ctx context.Context, v *models.KeyVerification) error {
	_, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pix_key_verifications (id, key_id, state, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(v.ID), uuid.UUID(v.KeyID), string(v.State), v.CreatedAt)
	if err != nil {
		return fmt.Errorf("create key verification: %w", err)
	}
	return nil
}

// CountFailedSince counts FAILED attempts created at or after since.
func (s *VerificationStore) CountFailedSince(ctx context.Context, keyID id.KeyID, since time.Time) (int, error) {
	var n int
	err := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pix_key_verifications
		WHERE key_id = $1 AND state = $2 AND created_at >= $3
	`, uuid.UUID(keyID), string(models.VerificationFailed), since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count failed verifications: %w", err)
	}
	return n, nil
}
