package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/platform/sentinel"
	"pixkeys/pkg/platform/tx"
)

const keyColumns = `id, user_id, value, type, state, owner, account, code, code_generated_at,
	claim_id, canceled_at, deleted_at, deleted_reason, failure, version, created_at, updated_at`

type KeyStore struct {
	db *sql.DB
}

func NewKeyStore(db *sql.DB) *KeyStore {
	return &KeyStore{db: db}
}

func (s *KeyStore) GetByID(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM pix_keys WHERE id = $1`
	return s.getOne(ctx, "get key", query, uuid.UUID(keyID))
}

func (s *KeyStore) GetByIDNonCanceled(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM pix_keys WHERE id = $1 AND state <> ALL($2)`
	return s.getOne(ctx, "get key", query, uuid.UUID(keyID), canceledStates())
}

func (s *KeyStore) GetByOwnerAndIDNonCanceled(ctx context.Context, userID id.UserID, keyID id.KeyID) (*models.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM pix_keys WHERE id = $1 AND user_id = $2 AND state <> ALL($3)`
	return s.getOne(ctx, "get key by owner", query, uuid.UUID(keyID), uuid.UUID(userID), canceledStates())
}

func (s *KeyStore) GetByValueNonCanceled(ctx context.Context, value string) ([]*models.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM pix_keys
		WHERE value = $1 AND state <> ALL($2)
		ORDER BY created_at, id`
	return s.getMany(ctx, "list keys by value", query, value, canceledStates())
}

func (s *KeyStore) GetByOwnerAndValueNonCanceled(ctx context.Context, userID id.UserID, value string) (*models.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM pix_keys
		WHERE user_id = $1 AND value = $2 AND state <> ALL($3)
		ORDER BY created_at, id
		LIMIT 1`
	return s.getOne(ctx, "get key by owner and value", query, uuid.UUID(userID), value, canceledStates())
}

func (s *KeyStore) CountByOwnerNonCanceled(ctx context.Context, userID id.UserID) (int, error) {
	var n int
	err := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pix_keys WHERE user_id = $1 AND state <> ALL($2)`,
		uuid.UUID(userID), canceledStates(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count keys by owner: %w", err)
	}
	return n, nil
}

func (s *KeyStore) GetByState(ctx context.Context, state models.KeyState, page ports.Page) ([]*models.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM pix_keys WHERE state = $1 ORDER BY created_at, id`
	args := []any{string(state)}
	if page.Size > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, page.Size, page.Offset())
	}
	return s.getMany(ctx, "list keys by state", query, args...)
}

func (s *KeyStore) GetByStaleUpdatedAtAndStates(ctx context.Context, before time.Time, states []models.KeyState, page ports.Page) ([]*models.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM pix_keys
		WHERE updated_at < $1 AND state = ANY($2)
		ORDER BY updated_at, id`
	args := []any{before, stateArray(states)}
	if page.Size > 0 {
		query += ` LIMIT $3 OFFSET $4`
		args = append(args, page.Size, page.Offset())
	}
	return s.getMany(ctx, "list stale keys", query, args...)
}

func (s *KeyStore) GetByClaimID(ctx context.Context, claimID id.ClaimID) (*models.Key, error) {
	query := `SELECT ` + keyColumns + ` FROM pix_keys
		WHERE claim_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	return s.getOne(ctx, "get key by claim", query, uuid.UUID(claimID))
}

func (s *KeyStore) Create(ctx context.Context, key *models.Key) error {
	owner, account, failure, err := encodeKeyDocuments(key)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO pix_keys (` + keyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, $15, $16)
	`
	_, err = tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(key.ID), uuid.UUID(key.UserID), key.Value, string(key.Type), string(key.State),
		owner, account, key.Code, nullTime(key.CodeGeneratedAt),
		nullClaimID(key.ClaimID), nullTime(key.CanceledAt), nullTime(key.DeletedAt), key.DeletedReason, failure,
		key.CreatedAt, key.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create key: %w", err)
	}
	key.Version = 1
	return nil
}

func (s *KeyStore) Update(ctx context.Context, key *models.Key) error {
	owner, account, failure, err := encodeKeyDocuments(key)
	if err != nil {
		return err
	}
	query := `
		UPDATE pix_keys SET
			value = $3, state = $4, owner = $5, account = $6, code = $7, code_generated_at = $8,
			claim_id = $9, canceled_at = $10, deleted_at = $11, deleted_reason = $12, failure = $13,
			updated_at = $14, version = version + 1
		WHERE id = $1 AND version = $2
	`
	res, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(key.ID), key.Version,
		key.Value, string(key.State), owner, account, key.Code, nullTime(key.CodeGeneratedAt),
		nullClaimID(key.ClaimID), nullTime(key.CanceledAt), nullTime(key.DeletedAt), key.DeletedReason, failure,
		key.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update key: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM pix_keys WHERE id = $1)`, uuid.UUID(key.ID),
		).Scan(&exists); err != nil {
			return fmt.Errorf("update key: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	key.Version++
	return nil
}

func (s *KeyStore) PaginatedListByOwnerNonCanceled(ctx context.Context, userID id.UserID, page ports.Page) (*ports.KeyPage, error) {
	total, err := s.CountByOwnerNonCanceled(ctx, userID)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + keyColumns + ` FROM pix_keys
		WHERE user_id = $1 AND state <> ALL($2)
		ORDER BY created_at, id`
	args := []any{uuid.UUID(userID), canceledStates()}
	if page.Size > 0 {
		query += ` LIMIT $3 OFFSET $4`
		args = append(args, page.Size, page.Offset())
	}
	items, err := s.getMany(ctx, "list keys by owner", query, args...)
	if err != nil {
		return nil, err
	}
	return &ports.KeyPage{
		Items:   items,
		Total:   total,
		HasNext: page.Offset()+len(items) < total,
	}, nil
}

func (s *KeyStore) getOne(ctx context.Context, op, query string, args ...any) (*models.Key, error) {
	key, err := scanKey(tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return key, nil
}

func (s *KeyStore) getMany(ctx context.Context, op, query string, args ...any) ([]*models.Key, error) {
	rows, err := tx.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var keys []*models.Key
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return keys, nil
}

func scanKey(row scanner) (*models.Key, error) {
	var (
		key                           models.Key
		keyID, userID                 uuid.UUID
		value                         sql.NullString
		keyType, state                string
		owner, account, failure       []byte
		codeAt, canceledAt, deletedAt sql.NullTime
		claimID                       uuid.NullUUID
	)
	if err := row.Scan(
		&keyID, &userID, &value, &keyType, &state, &owner, &account, &key.Code, &codeAt,
		&claimID, &canceledAt, &deletedAt, &key.DeletedReason, &failure, &key.Version, &key.CreatedAt, &key.UpdatedAt,
	); err != nil {
		return nil, err
	}
	key.ID = id.KeyID(keyID)
	key.UserID = id.UserID(userID)
	if value.Valid {
		v := value.String
		key.Value = &v
	}
	key.Type = models.KeyType(keyType)
	key.State = models.KeyState(state)
	key.CodeGeneratedAt = timePtr(codeAt)
	key.CanceledAt = timePtr(canceledAt)
	key.DeletedAt = timePtr(deletedAt)
	if claimID.Valid {
		c := id.ClaimID(claimID.UUID)
		key.ClaimID = &c
	}
	if err := json.Unmarshal(owner, &key.Owner); err != nil {
		return nil, fmt.Errorf("decode owner: %w", err)
	}
	if err := json.Unmarshal(account, &key.Account); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	if len(failure) > 0 {
		key.Failure = &models.Failure{}
		if err := json.Unmarshal(failure, key.Failure); err != nil {
			return nil, fmt.Errorf("decode failure: %w", err)
		}
	}
	return &key, nil
}

func encodeKeyDocuments(key *models.Key) (owner, account string, failure sql.NullString, err error) {
	b, err := json.Marshal(key.Owner)
	if err != nil {
		return "", "", failure, fmt.Errorf("encode owner: %w", err)
	}
	owner = string(b)
	if b, err = json.Marshal(key.Account); err != nil {
		return "", "", failure, fmt.Errorf("encode account: %w", err)
	}
	account = string(b)
	if key.Failure != nil {
		if b, err = json.Marshal(key.Failure); err != nil {
			return "", "", failure, fmt.Errorf("encode failure: %w", err)
		}
		failure = sql.NullString{String: string(b), Valid: true}
	}
	return owner, account, failure, nil
}

func nullClaimID(c *id.ClaimID) uuid.NullUUID {
	if c == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*c), Valid: true}
}

func stateArray(states []models.KeyState) any {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return pq.Array(out)
}

func canceledStates() any {
	return stateArray(models.CanceledStates)
}
