package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pixkeys/internal/pixkey/models"
	id "pixkeys/pkg/domain"
	"pixkeys/pkg/platform/sentinel"
	"pixkeys/pkg/platform/tx"
)

const claimColumns = `id, key_value, key_type, kind, status, participation, claimer_ispb, donor_ispb,
	document, person_type, opened_at, resolution_period_end, completion_period_end, closed_at,
	final_resolution_at, cancel_reason, canceled_by, created_at, updated_at`

type ClaimStore struct {
	db *sql.DB
}

func NewClaimStore(db *sql.DB) *ClaimStore {
	return &ClaimStore{db: db}
}

func (s *ClaimStore) GetByID(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM pix_claims WHERE id = $1`
	return s.getOne(ctx, query, uuid.UUID(claimID))
}

func (s *ClaimStore) GetByIDOpenedBefore(ctx context.Context, claimID id.ClaimID, before time.Time) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM pix_claims WHERE id = $1 AND opened_at < $2`
	return s.getOne(ctx, query, uuid.UUID(claimID), before)
}

func (s *ClaimStore) Create(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO pix_claims (` + claimColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query, claimArgs(claim)...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create claim: %w", err)
	}
	return nil
}

func (s *ClaimStore) Update(ctx context.Context, claim *models.Claim) error {
	query := `
		UPDATE pix_claims SET
			key_value = $2, key_type = $3, kind = $4, status = $5, participation = $6,
			claimer_ispb = $7, donor_ispb = $8, document = $9, person_type = $10, opened_at = $11,
			resolution_period_end = $12, completion_period_end = $13, closed_at = $14,
			final_resolution_at = $15, cancel_reason = $16, canceled_by = $17, updated_at = $19
		WHERE id = $1
	`
	res, err := tx.ExecutorFrom(ctx, s.db).ExecContext(ctx, query, claimArgs(claim)...)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *ClaimStore) getOne(ctx context.Context, query string, args ...any) (*models.Claim, error) {
	claim, err := scanClaim(tx.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return claim, nil
}

// claimArgs orders the claim fields like claimColumns.
func claimArgs(c *models.Claim) []any {
	return []any{
		uuid.UUID(c.ID), c.KeyValue, string(c.KeyType), string(c.Kind), string(c.Status), string(c.Participation),
		c.ClaimerISPB, c.DonorISPB, c.Document, string(c.PersonType), c.OpenedAt,
		nullTime(c.ResolutionPeriodEnd), nullTime(c.CompletionPeriodEnd), nullTime(c.ClosedAt),
		nullTime(c.FinalResolutionAt), c.CancelReason, c.CanceledBy, c.CreatedAt, c.UpdatedAt,
	}
}

func scanClaim(row scanner) (*models.Claim, error) {
	var (
		c                                               models.Claim
		claimID                                         uuid.UUID
		keyType, kind, status, part, personType         string
		resolutionEnd, completionEnd, closedAt, finalAt sql.NullTime
	)
	if err := row.Scan(
		&claimID, &c.KeyValue, &keyType, &kind, &status, &part, &c.ClaimerISPB, &c.DonorISPB,
		&c.Document, &personType, &c.OpenedAt, &resolutionEnd, &completionEnd, &closedAt,
		&finalAt, &c.CancelReason, &c.CanceledBy, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.ID = id.ClaimID(claimID)
	c.KeyType = models.KeyType(keyType)
	c.Kind = models.ClaimKind(kind)
	c.Status = models.ClaimStatus(status)
	c.Participation = models.Participation(part)
	c.PersonType = models.PersonType(personType)
	c.ResolutionPeriodEnd = timePtr(resolutionEnd)
	c.CompletionPeriodEnd = timePtr(completionEnd)
	c.ClosedAt = timePtr(closedAt)
	c.FinalResolutionAt = timePtr(finalAt)
	return &c, nil
}
