package pool

import "time"

// Record is the in-memory form of one upstream account. Secrets are held
// decrypted here; they only pass through the cipher at the persistence
// boundary (models.Account).
type Record struct {
	Email     string
	Name      string
	ProjectID string
	SessionID string

	AccessToken   string
	RefreshToken  string
	TokenIssuedAt int64
	ExpiresIn     int64

	SubscriptionTier string
	ProtectedModels  map[string]struct{}
	RemainingQuota   *int
	ModelQuotas      map[string]int

	HealthScore            float64
	ValidationBlocked      bool
	ValidationBlockedUntil int64
	QuotaResetAt           int64
}

// Clone returns a deep copy so callers can hold a snapshot while the pool
// keeps mutating.
func (r *Record) Clone() *Record {
	clone := *r
	if r.RemainingQuota != nil {
		v := *r.RemainingQuota
		clone.RemainingQuota = &v
	}
	if r.ModelQuotas != nil {
		clone.ModelQuotas = make(map[string]int, len(r.ModelQuotas))
		for k, v := range r.ModelQuotas {
			clone.ModelQuotas[k] = v
		}
	}
	if r.ProtectedModels != nil {
		clone.ProtectedModels = make(map[string]struct{}, len(r.ProtectedModels))
		for k := range r.ProtectedModels {
			clone.ProtectedModels[k] = struct{}{}
		}
	}
	return &clone
}

// SupportsModel reports capability: a model the account can serve appears as
// a key of ModelQuotas, absence means cannot serve (not zero quota).
func (r *Record) SupportsModel(model string) bool {
	_, ok := r.ModelQuotas[model]
	return ok
}

// QuotaFor returns the remaining quota for model, falling back to the
// overall remaining quota when no per-model figure exists.
func (r *Record) QuotaFor(model string) int {
	if q, ok := r.ModelQuotas[model]; ok {
		return q
	}
	if r.RemainingQuota != nil {
		return *r.RemainingQuota
	}
	return 0
}

// BlockedAt reports whether the account is excluded from selection at now.
// A blocked-until timestamp in the past clears the block.
func (r *Record) BlockedAt(now time.Time) bool {
	return r.ValidationBlocked && r.ValidationBlockedUntil > now.Unix()
}

// TokenExpiresAt is the nominal access-token expiry instant.
func (r *Record) TokenExpiresAt() time.Time {
	return time.Unix(r.TokenIssuedAt+r.ExpiresIn, 0)
}
