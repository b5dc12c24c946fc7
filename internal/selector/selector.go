// Package selector picks the account(s) to serve a model request. Filtering
// is capability-driven (the quota map is the ground truth for what an
// account can serve); ranking is strict-tier-first so the best subscription
// is always burned before lower ones.
package selector

import (
	"sort"
	"strings"
	"time"

	"github.com/pysugar/antigravity-nexus/internal/pool"
)

// Tier priorities, best first. Classification is a case-insensitive
// substring match against the upstream tier label, which arrives in shapes
// like "GOOGLE_ONE_ULTRA" or "pro-tier".
const (
	TierUltra = iota
	TierPro
	TierFree
	TierUnknown
)

// UltraRequiredModels lists model-name fragments that only the top
// subscription can serve upstream. This list is informational for operators:
// enforcement happens entirely in the capability filter, because accounts
// that cannot serve such a model never carry it in their quota map.
var UltraRequiredModels = []string{
	"claude-opus-4-6",
	"claude-opus-4-5",
	"opus",
}

// IsUltraRequiredModel reports whether model is in the top-tier-only family.
func IsUltraRequiredModel(model string) bool {
	lower := strings.ToLower(model)
	for _, m := range UltraRequiredModels {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// TierPriority classifies a subscription label. Priority order matters:
// "ultra" is checked before "pro" so a label containing both ranks ultra.
func TierPriority(tier string) int {
	t := strings.ToLower(tier)
	switch {
	case strings.Contains(t, "ultra"):
		return TierUltra
	case strings.Contains(t, "pro"):
		return TierPro
	case strings.Contains(t, "free"):
		return TierFree
	default:
		return TierUnknown
	}
}

// Select returns the accounts able to serve targetModel, most preferred
// first. An empty slice (never an error) means no account currently
// qualifies. Records are snapshots; the caller owns them.
func Select(records []*pool.Record, targetModel string) []*pool.Record {
	return selectAt(records, targetModel, time.Now())
}

func selectAt(records []*pool.Record, targetModel string, now time.Time) []*pool.Record {
	candidates := make([]*pool.Record, 0, len(records))
	for _, rec := range records {
		if !rec.SupportsModel(targetModel) {
			continue
		}
		if rec.BlockedAt(now) {
			continue
		}
		// Per-account opt-out: the owner reserved this model for manual use.
		if _, protected := rec.ProtectedModels[targetModel]; protected {
			continue
		}
		candidates = append(candidates, rec)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return compare(candidates[i], candidates[j], targetModel) < 0
	})
	return candidates
}

// compare ranks two eligible records; the first non-equal criterion decides.
// Tier precedence is unconditional: an ultra account outranks a pro account
// for every model both can serve, whatever their quotas say.
func compare(a, b *pool.Record, targetModel string) int {
	if d := TierPriority(a.SubscriptionTier) - TierPriority(b.SubscriptionTier); d != 0 {
		return d
	}
	if d := b.QuotaFor(targetModel) - a.QuotaFor(targetModel); d != 0 {
		return d
	}
	if a.HealthScore != b.HealthScore {
		if a.HealthScore > b.HealthScore {
			return -1
		}
		return 1
	}
	// Stable tie-break keeps equal-ranked output reproducible across runs.
	return strings.Compare(a.Email, b.Email)
}
