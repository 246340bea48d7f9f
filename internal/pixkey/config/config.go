// Package config holds the business parameters of the pix key engine.
//
// Values here are policy, not wiring: limits, timeouts and bucket sizes.
// internal/platform/config overlays them from the environment.
package config

import (
	"time"

	"pixkeys/internal/pixkey/models"
)

type LifecycleConfig struct {
	MaxKeysNaturalPerson int
	MaxKeysLegalPerson   int
	MaxVerifyAttempts    int
}

// MaxKeys returns the key ceiling for a person type.
func (c LifecycleConfig) MaxKeys(pt models.PersonType) int {
	if pt == models.LegalPerson {
		return c.MaxKeysLegalPerson
	}
	return c.MaxKeysNaturalPerson
}

type PortabilityConfig struct {
	// AutoApprove confirms incoming portability requests without waiting
	// for the key owner.
	AutoApprove bool
}

type DecodeConfig struct {
	NaturalPersonCeiling int
	LegalPersonCeiling   int
	ValidCost            int
	InvalidPenalty       int
	ConfirmedCredit      int
	RefillInterval       time.Duration
	RefillIncrement      int
	CacheTTL             time.Duration
	MaxUpdateRetries     int
}

// Policy returns the bucket policy for a person type.
func (c DecodeConfig) Policy(pt models.PersonType) models.BucketPolicy {
	ceiling := c.NaturalPersonCeiling
	if pt == models.LegalPerson {
		ceiling = c.LegalPersonCeiling
	}
	return models.BucketPolicy{
		Ceiling:         ceiling,
		RefillInterval:  c.RefillInterval,
		RefillIncrement: c.RefillIncrement,
	}
}

// StaleRule names a transient state and how long a key may sit in it.
type StaleRule struct {
	State   models.KeyState
	Timeout time.Duration
}

type ReconcileConfig struct {
	StaleRules       []StaleRule
	ScanBatchSize    int
	ClaimPageSize    int
	ClaimSyncWindow  time.Duration
	ResolutionPeriod time.Duration
	RegistryRPS      float64
	ExpireInterval   time.Duration
	ClaimSyncEvery   time.Duration
	WaitingInterval  time.Duration
}

type Config struct {
	ISPB        string
	Lifecycle   LifecycleConfig
	Portability PortabilityConfig
	Decode      DecodeConfig
	Reconcile   ReconcileConfig
}

func DefaultConfig() Config {
	return Config{
		ISPB: "00000000",
		Lifecycle: LifecycleConfig{
			MaxKeysNaturalPerson: 5,
			MaxKeysLegalPerson:   20,
			MaxVerifyAttempts:    3,
		},
		Decode: DecodeConfig{
			NaturalPersonCeiling: 100,
			LegalPersonCeiling:   1000,
			ValidCost:            1,
			InvalidPenalty:       20,
			ConfirmedCredit:      1,
			RefillInterval:       time.Minute,
			RefillIncrement:      2,
			CacheTTL:             30 * time.Second,
			MaxUpdateRetries:     3,
		},
		Reconcile: ReconcileConfig{
			StaleRules: []StaleRule{
				{State: models.StatePending, Timeout: 24 * time.Hour},
				{State: models.StateOwnershipPending, Timeout: 7 * 24 * time.Hour},
				{State: models.StatePortabilityPending, Timeout: 7 * 24 * time.Hour},
				{State: models.StatePortabilityRequestPending, Timeout: 7 * 24 * time.Hour},
				{State: models.StateClaimPending, Timeout: 7 * 24 * time.Hour},
			},
			ScanBatchSize:    200,
			ClaimPageSize:    100,
			ClaimSyncWindow:  24 * time.Hour,
			ResolutionPeriod: 7 * 24 * time.Hour,
			RegistryRPS:      5,
			ExpireInterval:   5 * time.Minute,
			ClaimSyncEvery:   time.Minute,
			WaitingInterval:  15 * time.Minute,
		},
	}
}
