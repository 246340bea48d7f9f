package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pixkeys/internal/pixkey/models"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/platform/sentinel"
	"pixkeys/pkg/platform/tx"
)

type DecodeLimitStore struct {
	db *sql.DB
}

func NewDecodeLimitStore(db *sql.DB) *DecodeLimitStore {
	return &DecodeLimitStore{db: db}
}

func (s *DecodeLimitStore) GetByUserID(ctx context.Context, userID id.UserID) (*models.UserDecodeLimit, error) {
	var (
		l   models.UserDecodeLimit
		uid uuid.UUID
	)
	err := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT user_id, budget, last_decoded_at, version, created_at, updated_at
		FROM pix_decode_limits
		WHERE user_id = $1
	`, uuid.UUID(userID)).Scan(&uid, &l.Limit, &l.LastDecodedAt, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get decode limit: %w", err)
	}
	l.UserID = id.UserID(uid)
	return &l, nil
}

func (s *DecodeLimitStore) Create(ctx context.Context, limit *models.UserDecodeLimit) error {
	_, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pix_decode_limits (user_id, budget, last_decoded_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5)
	`, uuid.UUID(limit.UserID), limit.Limit, limit.LastDecodedAt, limit.CreatedAt, limit.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create decode limit: %w", err)
	}
	limit.Version = 1
	return nil
}

func (s *DecodeLimitStore) Update(ctx context.Context, limit *models.UserDecodeLimit) error {
	res, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE pix_decode_limits SET
			budget = $3, last_decoded_at = $4, updated_at = $5, version = version + 1
		WHERE user_id = $1 AND version = $2
	`, uuid.UUID(limit.UserID), limit.Version, limit.Limit, limit.LastDecodedAt, limit.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update decode limit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update decode limit: %w", err)
	}
	if n == 0 {
		if _, err := s.GetByUserID(ctx, limit.UserID); err != nil {
			return err
		}
		return sentinel.ErrConflict
	}
	limit.Version++
	return nil
}

type DecodedKeyStore struct {
	db *sql.DB
}

func NewDecodedKeyStore(db *sql.DB) *DecodedKeyStore {
	return &DecodedKeyStore{db: db}
}

func (s *DecodedKeyStore) GetByID(ctx context.Context, decodedID id.DecodedKeyID) (*models.DecodedKey, error) {
	var (
		d              models.DecodedKey
		did, uid       uuid.UUID
		keyType, state string
		owner, account []byte
	)
	err := tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, user_id, key_value, key_type, state, owner, account, end_to_end_id, local, created_at, updated_at
		FROM pix_decoded_keys
		WHERE id = $1
	`, uuid.UUID(decodedID)).Scan(
		&did, &uid, &d.KeyValue, &keyType, &state, &owner, &account, &d.EndToEndID, &d.Local, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get decoded key: %w", err)
	}
	d.ID = id.DecodedKeyID(did)
	d.UserID = id.UserID(uid)
	d.KeyType = models.KeyType(keyType)
	d.State = models.DecodedKeyState(state)
	if err := json.Unmarshal(owner, &d.Owner); err != nil {
		return nil, fmt.Errorf("decode owner: %w", err)
	}
	if err := json.Unmarshal(account, &d.Account); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &d, nil
}

func (s *DecodedKeyStore) Create(ctx context.Context, decoded *models.DecodedKey) error {
	owner, account, err := encodeDecodedDocuments(decoded)
	if err != nil {
		return err
	}
	_, err = tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pix_decoded_keys (id, user_id, key_value, key_type, state, owner, account, end_to_end_id, local, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, uuid.UUID(decoded.ID), uuid.UUID(decoded.UserID), decoded.KeyValue, string(decoded.KeyType), string(decoded.State),
		owner, account, decoded.EndToEndID, decoded.Local, decoded.CreatedAt, decoded.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create decoded key: %w", err)
	}
	return nil
}

func (s *DecodedKeyStore) Update(ctx context.Context, decoded *models.DecodedKey) error {
	owner, account, err := encodeDecodedDocuments(decoded)
	if err != nil {
		return err
	}
	res, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		UPDATE pix_decoded_keys SET
			key_value = $2, key_type = $3, state = $4, owner = $5, account = $6,
			end_to_end_id = $7, local = $8, updated_at = $9
		WHERE id = $1
	`, uuid.UUID(decoded.ID), decoded.KeyValue, string(decoded.KeyType), string(decoded.State),
		owner, account, decoded.EndToEndID, decoded.Local, decoded.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update decoded key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update decoded key: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func encodeDecodedDocuments(d *models.DecodedKey) (owner, account string, err error) {
	b, err := json.Marshal(d.Owner)
	if err != nil {
		return "", "", fmt.Errorf("encode owner: %w", err)
	}
	owner = string(b)
	if b, err = json.Marshal(d.Account); err != nil {
		return "", "", fmt.Errorf("encode account: %w", err)
	}
	return owner, string(b), nil
}
