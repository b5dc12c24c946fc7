// Package pool maintains the account pool: an in-memory cache over the
// encrypted sqlite store, mutated by imports, live refreshes and usage
// reports, and scanned read-only by the selection engine.
package pool

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pysugar/antigravity-nexus/internal/crypto"
	"github.com/pysugar/antigravity-nexus/internal/db/models"
	"gorm.io/gorm"
)

// Pool is the single piece of shared mutable state. Reads take the read
// lock; every mutation holds the write lock for cache and database together
// so a record is never observed half-applied.
type Pool struct {
	db      *gorm.DB
	mu      sync.RWMutex
	records map[string]*Record
}

// Credentials carries the secret/identity fields an import or refresh
// supplies to Upsert. Zero values mean "not supplied, keep existing".
type Credentials struct {
	AccessToken   string
	RefreshToken  string
	TokenIssuedAt int64
	ExpiresIn     int64
	ProjectID     string
	SessionID     string
}

// UsageUpdate carries quota/health figures from the external validation
// collaborator. Nil pointers mean "leave unchanged".
type UsageUpdate struct {
	SubscriptionTier *string
	RemainingQuota   *int
	ModelQuotas      map[string]int
	ProtectedModels  []string
	HealthScore      *float64
	Blocked          *bool
	BlockedUntil     *int64
	QuotaResetAt     *int64
}

// New loads every persisted account into memory. Secrets decrypt through the
// EncryptedString scanner; a value that cannot be decrypted is kept as
// stored rather than dropped.
func New(database *gorm.DB) (*Pool, error) {
	p := &Pool{
		db:      database,
		records: make(map[string]*Record),
	}

	var accounts []models.Account
	if err := database.Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("pool: load accounts: %w", err)
	}
	for i := range accounts {
		rec, err := fromModel(&accounts[i])
		if err != nil {
			log.Printf("⚠️ Skipping unreadable account row %s: %v", accounts[i].Email, err)
			continue
		}
		p.records[rec.Email] = rec
	}
	log.Printf("📦 Loaded %d accounts into pool", len(p.records))
	return p, nil
}

// Upsert inserts a new record or merges the supplied fields into an existing
// one. Fields not supplied are never cleared, so a partial import cannot
// erase quota or health state the validator already filled in.
func (p *Pool) Upsert(email, name string, creds Credentials) (*Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, exists := p.records[email]
	if !exists {
		rec = &Record{
			Email:       email,
			HealthScore: 1.0,
			ModelQuotas: make(map[string]int),
		}
		p.records[email] = rec
	}

	if name != "" {
		rec.Name = name
	}
	if creds.AccessToken != "" {
		rec.AccessToken = creds.AccessToken
		rec.TokenIssuedAt = creds.TokenIssuedAt
		rec.ExpiresIn = creds.ExpiresIn
	}
	if creds.RefreshToken != "" {
		rec.RefreshToken = creds.RefreshToken
	}
	if creds.ProjectID != "" {
		rec.ProjectID = creds.ProjectID
	}
	if creds.SessionID != "" {
		rec.SessionID = creds.SessionID
	}
	if rec.SessionID == "" {
		rec.SessionID = uuid.New().String()
	}

	if err := p.persistLocked(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// ApplyUsage merges quota/health figures into an existing record. Unknown
// emails are an error: the validator reports on accounts, it never creates
// them.
func (p *Pool) ApplyUsage(email string, update UsageUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[email]
	if !ok {
		return fmt.Errorf("pool: no such account %q", email)
	}

	if update.SubscriptionTier != nil {
		rec.SubscriptionTier = *update.SubscriptionTier
	}
	if update.RemainingQuota != nil {
		v := *update.RemainingQuota
		rec.RemainingQuota = &v
	}
	if update.ModelQuotas != nil {
		quotas := make(map[string]int, len(update.ModelQuotas))
		for k, v := range update.ModelQuotas {
			quotas[k] = v
		}
		rec.ModelQuotas = quotas
	}
	if update.ProtectedModels != nil {
		protected := make(map[string]struct{}, len(update.ProtectedModels))
		for _, m := range update.ProtectedModels {
			protected[m] = struct{}{}
		}
		rec.ProtectedModels = protected
	}
	if update.HealthScore != nil {
		rec.HealthScore = *update.HealthScore
	}
	if update.Blocked != nil {
		rec.ValidationBlocked = *update.Blocked
	}
	if update.BlockedUntil != nil {
		rec.ValidationBlockedUntil = *update.BlockedUntil
	}
	if update.QuotaResetAt != nil {
		rec.QuotaResetAt = *update.QuotaResetAt
	}

	return p.persistLocked(rec)
}

// Get returns a snapshot copy of one record.
func (p *Pool) Get(email string) (*Record, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[email]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// List returns snapshot copies of every record, ordered by email so callers
// iterating the pool see a stable sequence.
func (p *Pool) List() []*Record {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Record, 0, len(p.records))
	for _, rec := range p.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// Remove deletes a record from cache and store.
func (p *Pool) Remove(email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.records[email]; !ok {
		return fmt.Errorf("pool: no such account %q", email)
	}
	if err := p.db.Delete(&models.Account{}, "email = ?", email).Error; err != nil {
		return fmt.Errorf("pool: delete %s: %w", email, err)
	}
	delete(p.records, email)
	log.Printf("🗑️ Removed account %s", email)
	return nil
}

// Len reports the number of pooled accounts.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.records)
}

func (p *Pool) persistLocked(rec *Record) error {
	row, err := toModel(rec)
	if err != nil {
		return err
	}
	if err := p.db.Save(row).Error; err != nil {
		return fmt.Errorf("pool: persist %s: %w", rec.Email, err)
	}
	return nil
}

func toModel(rec *Record) (*models.Account, error) {
	quotas, err := json.Marshal(rec.ModelQuotas)
	if err != nil {
		return nil, fmt.Errorf("pool: marshal model quotas for %s: %w", rec.Email, err)
	}
	protected := make([]string, 0, len(rec.ProtectedModels))
	for m := range rec.ProtectedModels {
		protected = append(protected, m)
	}
	sort.Strings(protected)
	protectedJSON, err := json.Marshal(protected)
	if err != nil {
		return nil, fmt.Errorf("pool: marshal protected models for %s: %w", rec.Email, err)
	}

	return &models.Account{
		Email:                  rec.Email,
		Name:                   rec.Name,
		ProjectID:              rec.ProjectID,
		SessionID:              rec.SessionID,
		AccessToken:            crypto.EncryptedString(rec.AccessToken),
		RefreshToken:           crypto.EncryptedString(rec.RefreshToken),
		TokenIssuedAt:          rec.TokenIssuedAt,
		ExpiresIn:              rec.ExpiresIn,
		SubscriptionTier:       rec.SubscriptionTier,
		ProtectedModels:        string(protectedJSON),
		RemainingQuota:         rec.RemainingQuota,
		ModelQuotas:            string(quotas),
		HealthScore:            rec.HealthScore,
		ValidationBlocked:      rec.ValidationBlocked,
		ValidationBlockedUntil: rec.ValidationBlockedUntil,
		QuotaResetAt:           rec.QuotaResetAt,
	}, nil
}

func fromModel(row *models.Account) (*Record, error) {
	rec := &Record{
		Email:                  row.Email,
		Name:                   row.Name,
		ProjectID:              row.ProjectID,
		SessionID:              row.SessionID,
		AccessToken:            row.AccessToken.String(),
		RefreshToken:           row.RefreshToken.String(),
		TokenIssuedAt:          row.TokenIssuedAt,
		ExpiresIn:              row.ExpiresIn,
		SubscriptionTier:       row.SubscriptionTier,
		RemainingQuota:         row.RemainingQuota,
		ModelQuotas:            make(map[string]int),
		HealthScore:            row.HealthScore,
		ValidationBlocked:      row.ValidationBlocked,
		ValidationBlockedUntil: row.ValidationBlockedUntil,
		QuotaResetAt:           row.QuotaResetAt,
	}

	if row.ModelQuotas != "" {
		if err := json.Unmarshal([]byte(row.ModelQuotas), &rec.ModelQuotas); err != nil {
			return nil, fmt.Errorf("pool: parse model quotas for %s: %w", row.Email, err)
		}
	}
	if row.ProtectedModels != "" {
		var protected []string
		if err := json.Unmarshal([]byte(row.ProtectedModels), &protected); err != nil {
			return nil, fmt.Errorf("pool: parse protected models for %s: %w", row.Email, err)
		}
		rec.ProtectedModels = make(map[string]struct{}, len(protected))
		for _, m := range protected {
			rec.ProtectedModels[m] = struct{}{}
		}
	}
	return rec, nil
}
