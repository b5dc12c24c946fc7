package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/pysugar/antigravity-nexus/internal/migration"
)

// ImportLegacyHandler runs the batch import from the v1 agent directory.
func ImportLegacyHandler(resolver *migration.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		imported, err := resolver.ImportLegacyAccounts(r.Context())
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, migration.ErrNoLegacyIndex) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}

		emails := make([]string, len(imported))
		for i, rec := range imported {
			emails[i] = rec.Email
		}
		log.Printf("📥 Legacy import finished: %d accounts", len(emails))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"imported": emails,
			"count":    len(emails),
		})
	}
}

// ImportFileHandler imports the login state from one explicitly named IDE
// state database.
func ImportFileHandler(resolver *migration.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing path"})
			return
		}

		rec, err := resolver.ImportFromPath(r.Context(), req.Path)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusOK, toView(rec))
	}
}
