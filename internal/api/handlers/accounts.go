// Package handlers exposes the management HTTP surface: inspecting the
// account pool, driving imports, and previewing selection decisions. The
// request-proxying data plane lives elsewhere and only consumes the
// selection API in-process.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/antigravity-nexus/internal/pool"
	"github.com/pysugar/antigravity-nexus/internal/selector"
)

// accountView is the wire shape of one pooled account. Secrets are always
// masked; the management API never returns usable tokens.
type accountView struct {
	Email            string         `json:"email"`
	Name             string         `json:"name,omitempty"`
	ProjectID        string         `json:"project_id,omitempty"`
	AccessToken      string         `json:"access_token"`
	RefreshToken     string         `json:"refresh_token"`
	TokenExpiresAt   time.Time      `json:"token_expires_at"`
	SubscriptionTier string         `json:"subscription_tier,omitempty"`
	TierPriority     int            `json:"tier_priority"`
	RemainingQuota   *int           `json:"remaining_quota,omitempty"`
	ModelQuotas      map[string]int `json:"model_quotas,omitempty"`
	ProtectedModels  []string       `json:"protected_models,omitempty"`
	HealthScore      float64        `json:"health_score"`
	Blocked          bool           `json:"blocked"`
	BlockedUntil     int64          `json:"blocked_until,omitempty"`
	QuotaResetAt     int64          `json:"quota_reset_at,omitempty"`
}

// maskToken keeps just enough of a token to recognize it in logs.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func toView(rec *pool.Record) accountView {
	var protected []string
	for m := range rec.ProtectedModels {
		protected = append(protected, m)
	}
	return accountView{
		Email:            rec.Email,
		Name:             rec.Name,
		ProjectID:        rec.ProjectID,
		AccessToken:      maskToken(rec.AccessToken),
		RefreshToken:     maskToken(rec.RefreshToken),
		TokenExpiresAt:   rec.TokenExpiresAt(),
		SubscriptionTier: rec.SubscriptionTier,
		TierPriority:     selector.TierPriority(rec.SubscriptionTier),
		RemainingQuota:   rec.RemainingQuota,
		ModelQuotas:      rec.ModelQuotas,
		ProtectedModels:  protected,
		HealthScore:      rec.HealthScore,
		Blocked:          rec.ValidationBlocked,
		BlockedUntil:     rec.ValidationBlockedUntil,
		QuotaResetAt:     rec.QuotaResetAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// AccountsHandler lists every pooled account with masked secrets.
func AccountsHandler(p *pool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records := p.List()
		views := make([]accountView, len(records))
		for i, rec := range records {
			views[i] = toView(rec)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"accounts": views,
			"count":    len(views),
		})
	}
}

// RemoveAccountHandler deletes one account from the pool.
func RemoveAccountHandler(p *pool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")
		if err := p.Remove(email); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"removed": email})
	}
}

// usageRequest mirrors pool.UsageUpdate on the wire; absent fields leave the
// record untouched.
type usageRequest struct {
	SubscriptionTier *string        `json:"subscription_tier"`
	RemainingQuota   *int           `json:"remaining_quota"`
	ModelQuotas      map[string]int `json:"model_quotas"`
	ProtectedModels  []string       `json:"protected_models"`
	HealthScore      *float64       `json:"health_score"`
	Blocked          *bool          `json:"blocked"`
	BlockedUntil     *int64         `json:"blocked_until"`
	QuotaResetAt     *int64         `json:"quota_reset_at"`
}

// UsageHandler lets the external validation process push quota, health and
// block state for an existing account.
func UsageHandler(p *pool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")

		var req usageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		err := p.ApplyUsage(email, pool.UsageUpdate{
			SubscriptionTier: req.SubscriptionTier,
			RemainingQuota:   req.RemainingQuota,
			ModelQuotas:      req.ModelQuotas,
			ProtectedModels:  req.ProtectedModels,
			HealthScore:      req.HealthScore,
			Blocked:          req.Blocked,
			BlockedUntil:     req.BlockedUntil,
			QuotaResetAt:     req.QuotaResetAt,
		})
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}

		rec, _ := p.Get(email)
		writeJSON(w, http.StatusOK, toView(rec))
	}
}

// SelectHandler previews the selection decision for a model: the ordered
// account list the proxy would try, most preferred first.
func SelectHandler(p *pool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := r.URL.Query().Get("model")
		if model == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing model query parameter"})
			return
		}

		ranked := selector.Select(p.List(), model)
		views := make([]accountView, len(ranked))
		for i, rec := range ranked {
			views[i] = toView(rec)
		}
		log.Printf("🎯 Selection preview for %s: %d candidates", model, len(views))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"model":          model,
			"ultra_required": selector.IsUltraRequiredModel(model),
			"accounts":       views,
		})
	}
}
