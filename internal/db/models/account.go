package models

import (
	"time"

	"github.com/pysugar/antigravity-nexus/internal/crypto"
)

// Account stores one Antigravity upstream account. Email is the stable key:
// the same Google identity imported twice (legacy index, IDE database) must
// land on one row. Secrets are EncryptedString columns, so they cross the
// process boundary encrypted with the device-bound cipher.
type Account struct {
	Email     string `gorm:"primaryKey"`
	Name      string
	ProjectID string
	SessionID string

	AccessToken   crypto.EncryptedString
	RefreshToken  crypto.EncryptedString
	TokenIssuedAt int64 // unix seconds when AccessToken was minted
	ExpiresIn     int64 // AccessToken lifetime in seconds

	SubscriptionTier string // free-form upstream label, e.g. "GOOGLE_ONE_ULTRA"
	ProtectedModels  string // JSON array of models opted out of automatic use
	RemainingQuota   *int   // overall remaining quota; nil when upstream omits it
	ModelQuotas      string // JSON object model -> remaining; key presence is capability truth

	HealthScore            float64 `gorm:"default:1"`
	ValidationBlocked      bool
	ValidationBlockedUntil int64 // unix seconds; in the past means not blocked
	QuotaResetAt           int64 // unix seconds when upstream resets quota counters

	CreatedAt time.Time
	UpdatedAt time.Time
}
