package models

import (
	"time"

	id "pixkeys/pkg/domain"
)

type ClaimKind string

const (
	ClaimOwnership   ClaimKind = "OWNERSHIP"
	ClaimPortability ClaimKind = "PORTABILITY"
)

type ClaimStatus string

const (
	ClaimStatusOpen              ClaimStatus = "OPEN"
	ClaimStatusWaitingResolution ClaimStatus = "WAITING_RESOLUTION"
	ClaimStatusConfirmed         ClaimStatus = "CONFIRMED"
	ClaimStatusCancelled         ClaimStatus = "CANCELLED"
	ClaimStatusCompleted         ClaimStatus = "COMPLETED"
)

// Participation is which side of the claim this platform is on.
type Participation string

const (
	ParticipationClaimer Participation = "CLAIMER"
	ParticipationDonor   Participation = "DONOR"
)

// Claim mirrors a registry-side claim. Claim rows are never deleted; use
// cases only stamp timeline fields and status.
type Claim struct {
	ID                  id.ClaimID    `json:"id"`
	KeyValue            string        `json:"key_value"`
	KeyType             KeyType       `json:"key_type"`
	Kind                ClaimKind     `json:"kind"`
	Status              ClaimStatus   `json:"status"`
	Participation       Participation `json:"participation"`
	ClaimerISPB         string        `json:"claimer_ispb"`
	DonorISPB           string        `json:"donor_ispb"`
	Document            string        `json:"document"`
	PersonType          PersonType    `json:"person_type"`
	OpenedAt            time.Time     `json:"opened_at"`
	ResolutionPeriodEnd *time.Time    `json:"resolution_period_end,omitempty"`
	CompletionPeriodEnd *time.Time    `json:"completion_period_end,omitempty"`
	ClosedAt            *time.Time    `json:"closed_at,omitempty"`
	FinalResolutionAt   *time.Time    `json:"final_resolution_at,omitempty"`
	CancelReason        string        `json:"cancel_reason,omitempty"`
	CanceledBy          string        `json:"canceled_by,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// DocumentOr returns the document the claim was opened under, or fallback
// when there is no claim or it was stored without one.
func (c *Claim) DocumentOr(fallback string) string {
	if c == nil || c.Document == "" {
		return fallback
	}
	return c.Document
}

func (c *Claim) IsCancelled() bool {
	return c.Status == ClaimStatusCancelled
}

func (c *Claim) MarkClosed(now time.Time) {
	c.ClosedAt = &now
	c.UpdatedAt = now
}

func (c *Claim) MarkResolved(now time.Time) {
	c.FinalResolutionAt = &now
	c.UpdatedAt = now
}

func (c *Claim) MarkCancelled(reason string, now time.Time) {
	c.Status = ClaimStatusCancelled
	c.CancelReason = reason
	c.UpdatedAt = now
}

// SyncFrom copies registry-owned fields from fetched and reports whether the
// status changed.
func (c *Claim) SyncFrom(fetched *Claim, now time.Time) bool {
	changed := c.Status != fetched.Status
	c.Status = fetched.Status
	c.ResolutionPeriodEnd = cloneTime(fetched.ResolutionPeriodEnd)
	c.CompletionPeriodEnd = cloneTime(fetched.CompletionPeriodEnd)
	if fetched.CancelReason != "" {
		c.CancelReason = fetched.CancelReason
	}
	if fetched.CanceledBy != "" {
		c.CanceledBy = fetched.CanceledBy
	}
	c.UpdatedAt = now
	return changed
}

func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	cp := *c
	cp.ResolutionPeriodEnd = cloneTime(c.ResolutionPeriodEnd)
	cp.CompletionPeriodEnd = cloneTime(c.CompletionPeriodEnd)
	cp.ClosedAt = cloneTime(c.ClosedAt)
	cp.FinalResolutionAt = cloneTime(c.FinalResolutionAt)
	return &cp
}
