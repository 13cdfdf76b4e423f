package falls

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"careline/internal/domain/audit"
	"careline/internal/middleware"
	"careline/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, auditSvc *audit.Service) {
	r.Post("/patients/{patientID}/falls", createFallHandler(svc, auditSvc))
	r.Get("/patients/{patientID}/falls", listFallsHandler(svc))
}

// createFallRequest es el cuerpo para registrar una caída.
type createFallRequest struct {
	OccurredAt *time.Time `json:"occurred_at"` // vacío => ahora
	Location   string     `json:"location"`
	Note       string     `json:"note"`
}

// fallResponse representa una caída registrada.
type fallResponse struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patient_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Location   string    `json:"location"`
	Note       string    `json:"note,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// createFallHandler godoc
// @Summary Registrar caída
// @Description Registra un incidente de caída del paciente. Requiere CARE_ADMIN o NURSE.
// @Tags falls
// @Accept json
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param payload body createFallRequest true "Datos de la caída"
// @Success 201 {object} fallResponse
// @Failure 400 {string} string "invalid json / location is required"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/falls [post]
func createFallHandler(svc *Service, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleCareAdmin, auth.RoleNurse)
		if !ok {
			return
		}

		var req createFallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		e, err := svc.Create(r.Context(), chi.URLParam(r, "patientID"), CreateInput{
			OccurredAt: req.OccurredAt,
			Location:   req.Location,
			Note:       req.Note,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		auditSvc.Record(r.Context(), "create_fall", "fall_event", e.ID, claims.Role, map[string]any{
			"patient_id": e.PatientID,
			"location":   e.Location,
		})
		writeJSON(w, http.StatusCreated, toFallResponse(e))
	}
}

// listFallsHandler godoc
// @Summary Listar caídas del paciente
// @Description Lista las caídas del paciente, más recientes primero.
// @Tags falls
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param limit query int false "Máximo de registros (default 50)"
// @Success 200 {array} fallResponse
// @Failure 401 {string} string "unauthorized"
// @Router /patients/{patientID}/falls [get]
func listFallsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireIdentity(w, r); !ok {
			return
		}

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		items, err := svc.ListForPatient(r.Context(), chi.URLParam(r, "patientID"), limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]fallResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toFallResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toFallResponse(e FallEvent) fallResponse {
	return fallResponse{
		ID:         e.ID,
		PatientID:  e.PatientID,
		OccurredAt: e.OccurredAt,
		Location:   e.Location,
		Note:       e.Note,
		RecordedAt: e.RecordedAt,
	}
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return auth.Claims{}, false
	}
	return claims, true
}

func requireRole(w http.ResponseWriter, r *http.Request, roles ...auth.Role) (auth.Claims, bool) {
	claims, ok := requireIdentity(w, r)
	if !ok {
		return auth.Claims{}, false
	}
	if !claims.HasAnyRole(roles...) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return auth.Claims{}, false
	}
	return claims, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
