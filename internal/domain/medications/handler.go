package medications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"careline/internal/domain/audit"
	"careline/internal/domain/doses"
	"careline/internal/middleware"
	"careline/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

const recentEventsShown = 5

func RegisterRoutes(r chi.Router, svc *Service, dosesSvc *doses.Service, auditSvc *audit.Service) {
	r.Post("/patients/{patientID}/medications", createMedicationHandler(svc, dosesSvc, auditSvc))
	r.Get("/patients/{patientID}/medications", listMedicationsHandler(svc, dosesSvc))

	r.Route("/medications/{medicationID}", func(mr chi.Router) {
		mr.Put("/", updateMedicationHandler(svc, dosesSvc, auditSvc))
		mr.Post("/toggle-active", toggleActiveHandler(svc, dosesSvc, auditSvc))
		mr.Get("/events", listEventsHandler(svc, dosesSvc))
	})
}

// upsertMedicationRequest es el cuerpo para crear/editar una pauta.
type upsertMedicationRequest struct {
	Name           string     `json:"name"`
	Dose           string     `json:"dose"`
	FrequencyHours int        `json:"frequency_hours"`
	Notes          string     `json:"notes"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	RxNormID       string     `json:"rxnorm_id"`
	RxNormName     string     `json:"rxnorm_name"`
}

func (req upsertMedicationRequest) toInput() UpsertInput {
	return UpsertInput{
		Name:           req.Name,
		Dose:           req.Dose,
		FrequencyHours: req.FrequencyHours,
		Notes:          req.Notes,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		RxNormID:       req.RxNormID,
		RxNormName:     req.RxNormName,
	}
}

// medicationResponse representa una pauta de medicación.
type medicationResponse struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`

	Name           string     `json:"name"`
	Dose           string     `json:"dose"`
	FrequencyHours int        `json:"frequency_hours"`
	Notes          string     `json:"notes,omitempty"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Active         bool       `json:"active"`
	Ended          bool       `json:"ended"`

	RxNormID   string `json:"rxnorm_id,omitempty"`
	RxNormName string `json:"rxnorm_name,omitempty"`

	RecentEvents []doseEventResponse `json:"recent_events,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type doseEventResponse struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Taken        bool      `json:"taken"`
	Skipped      bool      `json:"skipped"`
	Note         string    `json:"note,omitempty"`
}

// createMedicationHandler godoc
// @Summary Crear medicamento
// @Description Registra una pauta para el paciente y siembra su primer evento de dosis. Requiere CARE_ADMIN o NURSE.
// @Tags medications
// @Accept json
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param payload body upsertMedicationRequest true "Datos de la pauta"
// @Success 201 {object} medicationResponse
// @Failure 400 {string} string "invalid json / name is required / dose is required / frequency_hours must be a positive integer"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/medications [post]
func createMedicationHandler(svc *Service, dosesSvc *doses.Service, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleCareAdmin, auth.RoleNurse)
		if !ok {
			return
		}

		var req upsertMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Create(r.Context(), chi.URLParam(r, "patientID"), req.toInput())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := dosesSvc.SeedInitial(r.Context(), scheduleView(m)); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		auditSvc.Record(r.Context(), "create_medication", "medication", m.ID, claims.Role, map[string]any{
			"patient_id":      m.PatientID,
			"frequency_hours": m.FrequencyHours,
		})
		writeJSON(w, http.StatusCreated, toMedicationResponse(m, dosesSvc.Now(), nil))
	}
}

// listMedicationsHandler godoc
// @Summary Listar medicamentos del paciente
// @Description Lista las pautas del paciente con sus últimos eventos de dosis y la bandera de fin de tratamiento.
// @Tags medications
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Success 200 {array} medicationResponse
// @Failure 401 {string} string "unauthorized"
// @Router /patients/{patientID}/medications [get]
func listMedicationsHandler(svc *Service, dosesSvc *doses.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireIdentity(w, r); !ok {
			return
		}

		meds, err := svc.ListForPatient(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		now := dosesSvc.Now()
		out := make([]medicationResponse, 0, len(meds))
		for _, m := range meds {
			events, err := dosesSvc.ListForMedication(r.Context(), m.ID, recentEventsShown)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			out = append(out, toMedicationResponse(m, now, events))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// updateMedicationHandler godoc
// @Summary Editar medicamento
// @Description Actualiza la pauta y reinicia el calendario futuro: los eventos resueltos no se tocan, los pendientes futuros se re-siembran según la nueva pauta. Requiere CARE_ADMIN o NURSE.
// @Tags medications
// @Accept json
// @Produce json
// @Param medicationID path string true "ID del medicamento"
// @Param payload body upsertMedicationRequest true "Datos de la pauta"
// @Success 200 {object} medicationResponse
// @Failure 400 {string} string "invalid json / name is required / dose is required / frequency_hours must be a positive integer"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "medication not found"
// @Router /medications/{medicationID} [put]
func updateMedicationHandler(svc *Service, dosesSvc *doses.Service, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleCareAdmin, auth.RoleNurse)
		if !ok {
			return
		}

		var req upsertMedicationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		m, err := svc.Update(r.Context(), chi.URLParam(r, "medicationID"), req.toInput())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				http.Error(w, "medication not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		seed := m.StartTime
		if err := dosesSvc.ResetFutureSchedule(r.Context(), m.ID, &seed); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		auditSvc.Record(r.Context(), "update_medication", "medication", m.ID, claims.Role, map[string]any{
			"patient_id":      m.PatientID,
			"frequency_hours": m.FrequencyHours,
		})
		writeJSON(w, http.StatusOK, toMedicationResponse(m, dosesSvc.Now(), nil))
	}
}

// toggleActiveHandler godoc
// @Summary Activar/pausar medicamento
// @Description Invierte el flag activo. Al pausar se purgan los eventos pendientes; al reactivar se materializa el siguiente. Requiere CARE_ADMIN o NURSE.
// @Tags medications
// @Produce json
// @Param medicationID path string true "ID del medicamento"
// @Success 200 {object} medicationResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "medication not found"
// @Router /medications/{medicationID}/toggle-active [post]
func toggleActiveHandler(svc *Service, dosesSvc *doses.Service, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleCareAdmin, auth.RoleNurse)
		if !ok {
			return
		}

		m, err := svc.ToggleActive(r.Context(), chi.URLParam(r, "medicationID"))
		if err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		if m.Active {
			err = dosesSvc.EnsureNextPending(r.Context(), m.ID)
		} else {
			err = dosesSvc.PurgePending(r.Context(), m.ID)
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		auditSvc.Record(r.Context(), "toggle_medication", "medication", m.ID, claims.Role, map[string]any{
			"patient_id": m.PatientID,
			"active":     m.Active,
		})
		writeJSON(w, http.StatusOK, toMedicationResponse(m, dosesSvc.Now(), nil))
	}
}

// listEventsHandler godoc
// @Summary Listar eventos de dosis del medicamento
// @Description Lista los eventos de dosis del medicamento, más recientes primero.
// @Tags medications
// @Produce json
// @Param medicationID path string true "ID del medicamento"
// @Param limit query int false "Máximo de eventos (default 50)"
// @Success 200 {array} doseEventResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "medication not found"
// @Router /medications/{medicationID}/events [get]
func listEventsHandler(svc *Service, dosesSvc *doses.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireIdentity(w, r); !ok {
			return
		}

		medID := chi.URLParam(r, "medicationID")
		if _, err := svc.GetByID(r.Context(), medID); err != nil {
			http.Error(w, "medication not found", http.StatusNotFound)
			return
		}

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		events, err := dosesSvc.ListForMedication(r.Context(), medID, limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]doseEventResponse, 0, len(events))
		for _, e := range events {
			out = append(out, toDoseEventResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func toMedicationResponse(m Medication, now time.Time, events []doses.DoseEvent) medicationResponse {
	resp := medicationResponse{
		ID:        m.ID,
		PatientID: m.PatientID,

		Name:           m.Name,
		Dose:           m.Dose,
		FrequencyHours: m.FrequencyHours,
		Notes:          m.Notes,
		StartTime:      m.StartTime,
		EndTime:        m.EndTime,
		Active:         m.Active,
		Ended:          m.Ended(now),

		RxNormID:   m.RxNormID,
		RxNormName: m.RxNormName,

		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for _, e := range events {
		resp.RecentEvents = append(resp.RecentEvents, toDoseEventResponse(e))
	}
	return resp
}

// scheduleView proyecta la pauta a la vista que consume el motor de dosis.
func scheduleView(m Medication) doses.Medication {
	return doses.Medication{
		ID:             m.ID,
		Active:         m.Active,
		FrequencyHours: m.FrequencyHours,
		StartTime:      m.StartTime,
		EndTime:        m.EndTime,
	}
}

func toDoseEventResponse(e doses.DoseEvent) doseEventResponse {
	return doseEventResponse{
		ID:           e.ID,
		MedicationID: e.MedicationID,
		ScheduledAt:  e.ScheduledAt,
		Taken:        e.Taken,
		Skipped:      e.Skipped,
		Note:         e.Note,
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
