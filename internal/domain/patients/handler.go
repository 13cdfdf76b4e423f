package patients

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"careline/internal/domain/audit"
	"careline/internal/domain/doses"
	"careline/internal/domain/falls"
	"careline/internal/domain/medications"
	"careline/internal/middleware"
	"careline/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

const dateOnly = "2006-01-02"

func RegisterRoutes(r chi.Router, svc *Service, medsSvc *medications.Service, dosesSvc *doses.Service, fallsSvc *falls.Service, auditSvc *audit.Service) {
	r.Route("/patients", func(pr chi.Router) {
		pr.Post("/", createPatientHandler(svc, auditSvc))
		pr.Get("/", listPatientsHandler(svc, fallsSvc))
		pr.Get("/{patientID}", getPatientHandler(svc, fallsSvc))
		pr.Put("/{patientID}", updatePatientHandler(svc, auditSvc))
		pr.Delete("/{patientID}", deletePatientHandler(svc, medsSvc, dosesSvc, fallsSvc, auditSvc))
	})
}

// upsertPatientRequest es el cuerpo para crear/editar un paciente.
type upsertPatientRequest struct {
	Name        string `json:"name"`
	Notes       string `json:"notes"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
	Diagnosis   string `json:"diagnosis"`
	Allergies   string `json:"allergies"`

	EmergencyContactName     string `json:"emergency_contact_name"`
	EmergencyContactPhone    string `json:"emergency_contact_phone"`
	EmergencyContactRelation string `json:"emergency_contact_relation"`
}

// patientResponse representa un paciente devuelto por la API.
type patientResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Notes       string `json:"notes,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Age         *int   `json:"age,omitempty"`
	Diagnosis   string `json:"diagnosis,omitempty"`
	Allergies   string `json:"allergies,omitempty"`

	EmergencyContactName     string `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone    string `json:"emergency_contact_phone,omitempty"`
	EmergencyContactRelation string `json:"emergency_contact_relation,omitempty"`

	FallsLast90Days *int `json:"falls_last_90_days,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (req upsertPatientRequest) toInput() (UpsertInput, error) {
	in := UpsertInput{
		Name:      req.Name,
		Notes:     req.Notes,
		Diagnosis: req.Diagnosis,
		Allergies: req.Allergies,

		EmergencyContactName:     req.EmergencyContactName,
		EmergencyContactPhone:    req.EmergencyContactPhone,
		EmergencyContactRelation: req.EmergencyContactRelation,
	}
	if v := strings.TrimSpace(req.DateOfBirth); v != "" {
		t, err := time.Parse(dateOnly, v)
		if err != nil {
			return UpsertInput{}, errors.New("date_of_birth must be YYYY-MM-DD")
		}
		in.DateOfBirth = &t
	}
	return in, nil
}

// createPatientHandler godoc
// @Summary Crear paciente
// @Description Registra un nuevo paciente bajo cuidado. Requiere rol CARE_ADMIN o NURSE.
// @Tags patients
// @Accept json
// @Produce json
// @Param payload body upsertPatientRequest true "Datos del paciente"
// @Success 201 {object} patientResponse
// @Failure 400 {string} string "invalid json / name is required"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients [post]
func createPatientHandler(svc *Service, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleCareAdmin, auth.RoleNurse)
		if !ok {
			return
		}

		var req upsertPatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		in, err := req.toInput()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		p, err := svc.Create(r.Context(), in)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		auditSvc.Record(r.Context(), "create_patient", "patient", p.ID, claims.Role, map[string]any{
			"has_notes": p.Notes != "",
		})
		writeJSON(w, http.StatusCreated, toPatientResponse(p, svc.AgeOf(p), nil))
	}
}

// listPatientsHandler godoc
// @Summary Listar pacientes
// @Description Lista todos los pacientes con su conteo de caídas de los últimos 90 días.
// @Tags patients
// @Produce json
// @Success 200 {array} patientResponse
// @Failure 401 {string} string "unauthorized"
// @Router /patients [get]
func listPatientsHandler(svc *Service, fallsSvc *falls.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireIdentity(w, r); !ok {
			return
		}

		items, err := svc.List(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]patientResponse, 0, len(items))
		for _, p := range items {
			var fallsCount *int
			if n, err := fallsSvc.CountLast90Days(r.Context(), p.ID); err == nil {
				fallsCount = &n
			}
			out = append(out, toPatientResponse(p, svc.AgeOf(p), fallsCount))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getPatientHandler godoc
// @Summary Ver paciente
// @Description Devuelve la ficha del paciente con edad derivada y caídas recientes.
// @Tags patients
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} patientResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID} [get]
func getPatientHandler(svc *Service, fallsSvc *falls.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireIdentity(w, r); !ok {
			return
		}

		p, err := svc.GetByID(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}

		var fallsCount *int
		if n, err := fallsSvc.CountLast90Days(r.Context(), p.ID); err == nil {
			fallsCount = &n
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p, svc.AgeOf(p), fallsCount))
	}
}

// updatePatientHandler godoc
// @Summary Editar paciente
// @Description Actualiza la ficha demográfica/contacto. Requiere CARE_ADMIN o NURSE.
// @Tags patients
// @Accept json
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Param payload body upsertPatientRequest true "Datos del paciente"
// @Success 200 {object} patientResponse
// @Failure 400 {string} string "invalid json / name is required"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID} [put]
func updatePatientHandler(svc *Service, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleCareAdmin, auth.RoleNurse)
		if !ok {
			return
		}

		var req upsertPatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		in, err := req.toInput()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		patientID := chi.URLParam(r, "patientID")
		p, err := svc.Update(r.Context(), patientID, in)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				http.Error(w, "name is required", http.StatusBadRequest)
				return
			}
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}

		auditSvc.Record(r.Context(), "update_patient", "patient", p.ID, claims.Role, map[string]any{
			"has_notes": p.Notes != "",
		})
		writeJSON(w, http.StatusOK, toPatientResponse(p, svc.AgeOf(p), nil))
	}
}

// deletePatientHandler godoc
// @Summary Borrar paciente
// @Description Borra el paciente y, en cascada, sus medicamentos, eventos de dosis y caídas. Solo CARE_ADMIN.
// @Tags patients
// @Param patientID path string true "ID del paciente"
// @Success 204 {string} string ""
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID} [delete]
func deletePatientHandler(svc *Service, medsSvc *medications.Service, dosesSvc *doses.Service, fallsSvc *falls.Service, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleCareAdmin)
		if !ok {
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if _, err := svc.GetByID(r.Context(), patientID); err != nil {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}

		// Cascada explícita: sirve igual para Postgres (redundante con los
		// FKs) y para los repos en memoria.
		meds, err := medsSvc.ListForPatient(r.Context(), patientID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		for _, m := range meds {
			if err := dosesSvc.PurgeAll(r.Context(), m.ID); err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
		}
		if err := medsSvc.DeleteForPatient(r.Context(), patientID); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if err := fallsSvc.DeleteForPatient(r.Context(), patientID); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if err := svc.Delete(r.Context(), patientID); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		auditSvc.Record(r.Context(), "delete_patient", "patient", patientID, claims.Role, nil)
		w.WriteHeader(http.StatusNoContent)
	}
}

func toPatientResponse(p Patient, age *int, fallsCount *int) patientResponse {
	resp := patientResponse{
		ID:        p.ID,
		Name:      p.Name,
		Notes:     p.Notes,
		Age:       age,
		Diagnosis: p.Diagnosis,
		Allergies: p.Allergies,

		EmergencyContactName:     p.EmergencyContactName,
		EmergencyContactPhone:    p.EmergencyContactPhone,
		EmergencyContactRelation: p.EmergencyContactRelation,

		FallsLast90Days: fallsCount,

		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.DateOfBirth != nil {
		resp.DateOfBirth = p.DateOfBirth.Format(dateOnly)
	}
	return resp
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

// writeJSON se duplica a propósito en los handlers de cada módulo para no
// crear helpers compartidos antes de tiempo.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
