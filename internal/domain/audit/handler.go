package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"careline/internal/middleware"
	"careline/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/audit", listAuditHandler(svc))
}

// entryResponse representa un registro del audit trail.
type entryResponse struct {
	ID         string         `json:"id"`
	TS         time.Time      `json:"ts"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorRole  string         `json:"actor_role,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// listAuditHandler godoc
// @Summary Ver audit trail
// @Description Lista los registros de auditoría, más recientes primero. Solo CARE_ADMIN.
// @Tags audit
// @Produce json
// @Param limit query int false "Máximo de registros (default 100, tope 500)"
// @Success 200 {array} entryResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /audit [get]
func listAuditHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !claims.HasAnyRole(auth.RoleCareAdmin) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}

		items, err := svc.List(r.Context(), limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]entryResponse, 0, len(items))
		for _, e := range items {
			out = append(out, entryResponse{
				ID:         e.ID,
				TS:         e.TS,
				Action:     e.Action,
				EntityType: e.EntityType,
				EntityID:   e.EntityID,
				ActorRole:  e.ActorRole,
				Meta:       e.Meta,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
