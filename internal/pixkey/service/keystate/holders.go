package keystate

import (
	"context"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	dErrors "pixkeys/pkg/domain-errors"
	"pixkeys/pkg/requestcontext"
)

// Counterparts returns the other non-canceled keys holding key's value,
// oldest first. A value should have at most one counterpart; more is
// alerted but does not block the caller.
func (m *Machine) Counterparts(ctx context.Context, key *models.Key, alerter ports.IntegrityAlerter, detectedBy string) ([]*models.Key, error) {
	if key.Value == nil {
		return nil, nil
	}
	holders, err := m.keys.GetByValueNonCanceled(ctx, *key.Value)
	if err != nil {
		return nil, WrapStoreErr(err, "key")
	}
	others := make([]*models.Key, 0, len(holders))
	for _, h := range holders {
		if h.ID != key.ID {
			others = append(others, h)
		}
	}
	if len(others) > 1 {
		m.alertHolders(ctx, key, holders, alerter, detectedBy)
	}
	return others, nil
}

func (m *Machine) alertHolders(ctx context.Context, key *models.Key, holders []*models.Key, alerter ports.IntegrityAlerter, detectedBy string) {
	conflict := models.KeyHolderConflict{
		KeyValue:   key.ValueOrEmpty(),
		DetectedBy: detectedBy,
		OccurredAt: requestcontext.Now(ctx),
	}
	for _, h := range holders {
		conflict.KeyIDs = append(conflict.KeyIDs, h.ID)
	}
	m.metrics.IncrementHolderConflict()
	m.logger.ErrorContext(ctx, "more than two holders for one key value",
		"key_id", key.ID.String(),
		"holders", len(holders),
		"detected_by", detectedBy,
	)
	if alerter == nil {
		return
	}
	if err := alerter.KeyHolderConflict(ctx, conflict); err != nil {
		m.logger.WarnContext(ctx, "failed to publish key holder conflict", "error", err)
	}
}

// SaveClaim stores a claim the registry just created and links key to it.
func SaveClaim(ctx context.Context, claims ports.ClaimRepository, key *models.Key, claim *models.Claim, kind models.ClaimKind, participation models.Participation) error {
	if claim == nil {
		return dErrors.New(dErrors.CodeInternal, "registry returned no claim")
	}
	now := requestcontext.Now(ctx)
	claim.Kind = kind
	claim.Participation = participation
	if claim.KeyValue == "" {
		claim.KeyValue = key.ValueOrEmpty()
	}
	if claim.KeyType == "" {
		claim.KeyType = key.Type
	}
	if claim.OpenedAt.IsZero() {
		claim.OpenedAt = now
	}
	claim.CreatedAt = now
	claim.UpdatedAt = now
	if err := claims.Create(ctx, claim); err != nil {
		return WrapStoreErr(err, "claim")
	}
	key.ClaimID = &claim.ID
	return nil
}

// LoadClaim returns the claim key references, or nil when it has none.
func LoadClaim(ctx context.Context, claims ports.ClaimRepository, key *models.Key) (*models.Claim, error) {
	if key.ClaimID == nil {
		return nil, nil
	}
	claim, err := claims.GetByID(ctx, *key.ClaimID)
	if err != nil {
		return nil, WrapStoreErr(err, "claim")
	}
	return claim, nil
}

// UpdateClaim syncs registry-returned fields (when present) and persists.
func UpdateClaim(ctx context.Context, claims ports.ClaimRepository, claim *models.Claim, fetched *models.Claim) error {
	if fetched != nil && fetched.Status != "" {
		claim.SyncFrom(fetched, requestcontext.Now(ctx))
	}
	if err := claims.Update(ctx, claim); err != nil {
		return WrapStoreErr(err, "claim")
	}
	return nil
}
