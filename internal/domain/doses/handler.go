package doses

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"careline/internal/domain/audit"
	"careline/internal/middleware"
	"careline/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

// PatientRef es la vista mínima de un paciente para el tablero y las
// validaciones de ruta.
type PatientRef struct {
	ID   string
	Name string
}

// PatientDirectory es la vista del módulo sobre los pacientes registrados.
type PatientDirectory interface {
	ListPatients(ctx context.Context) ([]PatientRef, error)
	PatientExists(ctx context.Context, id string) (bool, error)
}

// FallCounter aporta el conteo de caídas recientes al tablero. Lo satisface
// el servicio de caídas.
type FallCounter interface {
	CountLast90Days(ctx context.Context, patientID string) (int, error)
}

func RegisterRoutes(r chi.Router, svc *Service, patients PatientDirectory, fallCounts FallCounter, auditSvc *audit.Service) {
	r.Route("/dose-events/{eventID}", func(er chi.Router) {
		er.Post("/take", resolveEventHandler(svc, auditSvc, actionTake))
		er.Post("/skip", resolveEventHandler(svc, auditSvc, actionSkip))
		er.Post("/undo", resolveEventHandler(svc, auditSvc, actionUndo))
		er.Put("/note", saveNoteHandler(svc, auditSvc))
	})

	r.Get("/alerts", alertsHandler(svc))
	r.Get("/adherence", dashboardHandler(svc, patients, fallCounts))
	r.Get("/patients/{patientID}/adherence", patientAdherenceHandler(svc, patients))
	r.Get("/patients/{patientID}/today", todayHandler(svc, patients))
}

const (
	actionTake = "take"
	actionSkip = "skip"
	actionUndo = "undo"
)

// eventResponse representa un evento de dosis clasificado.
type eventResponse struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	ScheduledAt  time.Time `json:"scheduled_at"`
	Taken        bool      `json:"taken"`
	Skipped      bool      `json:"skipped"`
	Note         string    `json:"note,omitempty"`
	Status       string    `json:"status"`
	HourLabel    string    `json:"hour_label"`
}

// alertResponse es un evento enriquecido para la lista de alertas.
type alertResponse struct {
	eventResponse

	MedicationName string `json:"medication_name"`
	MedicationDose string `json:"medication_dose"`
	PatientID      string `json:"patient_id"`
	PatientName    string `json:"patient_name"`
}

// summaryResponse serializa un resumen de adherencia con su porcentaje.
type summaryResponse struct {
	Summary
	Percent *float64 `json:"percent"`
}

// overviewResponse agrupa las tres ventanas de adherencia de un paciente.
type overviewResponse struct {
	Today  summaryResponse `json:"today"`
	Last7d summaryResponse `json:"last_7d"`
	Last30 summaryResponse `json:"last_30d"`
}

// dashboardRow es la fila por paciente del tablero de adherencia.
type dashboardRow struct {
	PatientID       string   `json:"patient_id"`
	PatientName     string   `json:"patient_name"`
	OverdueCount    int      `json:"overdue_count"`
	Adherence7d     *float64 `json:"adherence_7d"`
	FallsLast90Days int      `json:"falls_last_90_days"`
}

// hourGroup agrupa los eventos del día por etiqueta de hora.
type hourGroup struct {
	Hour   string          `json:"hour"`
	Events []alertResponse `json:"events"`
}

// resolveEventHandler godoc
// @Summary Resolver evento de dosis
// @Description Marca el evento como tomado, omitido o lo devuelve a pendiente según la acción de la ruta, y materializa el siguiente evento pendiente del medicamento. Requiere CARE_ADMIN o NURSE.
// @Tags dose-events
// @Produce json
// @Param eventID path string true "ID del evento"
// @Success 200 {object} eventResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "dose event not found"
// @Router /dose-events/{eventID}/take [post]
func resolveEventHandler(svc *Service, auditSvc *audit.Service, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleCareAdmin, auth.RoleNurse)
		if !ok {
			return
		}

		eventID := chi.URLParam(r, "eventID")
		if _, err := svc.GetByID(r.Context(), eventID); err != nil {
			http.Error(w, "dose event not found", http.StatusNotFound)
			return
		}

		var err error
		switch action {
		case actionTake:
			err = svc.MarkTaken(r.Context(), eventID)
		case actionSkip:
			err = svc.MarkSkipped(r.Context(), eventID)
		default:
			err = svc.Undo(r.Context(), eventID)
		}
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		ev, err := svc.GetByID(r.Context(), eventID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		auditSvc.Record(r.Context(), action+"_dose", "dose_event", ev.ID, claims.Role, map[string]any{
			"medication_id": ev.MedicationID,
		})
		writeJSON(w, http.StatusOK, toEventResponse(ev, svc.Now()))
	}
}

// saveNoteRequest es el cuerpo para anotar un evento.
type saveNoteRequest struct {
	Note string `json:"note"`
}

// saveNoteHandler godoc
// @Summary Anotar evento de dosis
// @Description Guarda la nota libre del evento sin cambiar su estado. Requiere CARE_ADMIN o NURSE.
// @Tags dose-events
// @Accept json
// @Produce json
// @Param eventID path string true "ID del evento"
// @Param payload body saveNoteRequest true "Nota"
// @Success 200 {object} eventResponse
// @Failure 400 {string} string "invalid json"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "dose event not found"
// @Router /dose-events/{eventID}/note [put]
func saveNoteHandler(svc *Service, auditSvc *audit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireRole(w, r, auth.RoleCareAdmin, auth.RoleNurse)
		if !ok {
			return
		}

		var req saveNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		eventID := chi.URLParam(r, "eventID")
		if _, err := svc.GetByID(r.Context(), eventID); err != nil {
			http.Error(w, "dose event not found", http.StatusNotFound)
			return
		}
		if err := svc.SaveNote(r.Context(), eventID, req.Note); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		ev, err := svc.GetByID(r.Context(), eventID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		auditSvc.Record(r.Context(), "note_dose", "dose_event", ev.ID, claims.Role, map[string]any{
			"medication_id": ev.MedicationID,
		})
		writeJSON(w, http.StatusOK, toEventResponse(ev, svc.Now()))
	}
}

// alertsHandler godoc
// @Summary Alertas de dosis
// @Description Lista los eventos de las últimas 24 horas en adelante, clasificados y ordenados: vencidos primero, luego próximos, resueltos al final; por hora dentro de cada grupo.
// @Tags dose-events
// @Produce json
// @Param patient_name query string false "Filtro por nombre de paciente (parcial, sin distinguir mayúsculas)"
// @Param limit query int false "Máximo de eventos (default 50)"
// @Success 200 {array} alertResponse
// @Failure 401 {string} string "unauthorized"
// @Router /alerts [get]
func alertsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireIdentity(w, r); !ok {
			return
		}

		filter := UpcomingFilter{PatientName: r.URL.Query().Get("patient_name")}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				filter.Limit = n
			}
		}

		items, err := svc.ListUpcoming(r.Context(), filter)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		now := svc.Now()
		out := make([]alertResponse, 0, len(items))
		for _, it := range items {
			out = append(out, toAlertResponse(it, now))
		}
		sortAlerts(out)
		writeJSON(w, http.StatusOK, out)
	}
}

// dashboardHandler godoc
// @Summary Tablero de adherencia
// @Description Una fila por paciente con pendientes vencidos, adherencia de los últimos 7 días y caídas recientes. Pacientes con más vencidos primero; a igualdad, menor adherencia primero (sin datos al final).
// @Tags adherence
// @Produce json
// @Success 200 {array} dashboardRow
// @Failure 401 {string} string "unauthorized"
// @Router /adherence [get]
func dashboardHandler(svc *Service, patients PatientDirectory, fallCounts FallCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireIdentity(w, r); !ok {
			return
		}

		refs, err := patients.ListPatients(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		now := svc.Now()
		rows := make([]dashboardRow, 0, len(refs))
		for _, ref := range refs {
			overdue, err := svc.CountOverdue(r.Context(), ref.ID)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			last7, err := svc.AdherenceSummary(r.Context(), ref.ID, now.AddDate(0, 0, -7), now)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			falls90 := 0
			if n, err := fallCounts.CountLast90Days(r.Context(), ref.ID); err == nil {
				falls90 = n
			}
			rows = append(rows, dashboardRow{
				PatientID:       ref.ID,
				PatientName:     ref.Name,
				OverdueCount:    overdue,
				Adherence7d:     last7.Percent(),
				FallsLast90Days: falls90,
			})
		}

		// Más vencidos primero; a igualdad, menor adherencia primero. Sin
		// datos (nil) se ordena después de 100%.
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].OverdueCount != rows[j].OverdueCount {
				return rows[i].OverdueCount > rows[j].OverdueCount
			}
			return percentKey(rows[i].Adherence7d) < percentKey(rows[j].Adherence7d)
		})
		writeJSON(w, http.StatusOK, rows)
	}
}

// patientAdherenceHandler godoc
// @Summary Adherencia del paciente
// @Description Resumen de adherencia del paciente en tres ventanas: hoy, últimos 7 días y últimos 30 días.
// @Tags adherence
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} overviewResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID}/adherence [get]
func patientAdherenceHandler(svc *Service, patients PatientDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireIdentity(w, r); !ok {
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if ok, err := patients.PatientExists(r.Context(), patientID); err != nil || !ok {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}

		ov, err := svc.AdherenceOverview(r.Context(), patientID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, overviewResponse{
			Today:  summaryResponse{Summary: ov.Today, Percent: ov.Today.Percent()},
			Last7d: summaryResponse{Summary: ov.Last7d, Percent: ov.Last7d.Percent()},
			Last30: summaryResponse{Summary: ov.Last30, Percent: ov.Last30.Percent()},
		})
	}
}

// todayHandler godoc
// @Summary Línea de tiempo del día
// @Description Eventos del paciente para el día corriente, agrupados por hora del día y clasificados.
// @Tags dose-events
// @Produce json
// @Param patientID path string true "ID del paciente"
// @Success 200 {array} hourGroup
// @Failure 401 {string} string "unauthorized"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID}/today [get]
func todayHandler(svc *Service, patients PatientDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireIdentity(w, r); !ok {
			return
		}

		patientID := chi.URLParam(r, "patientID")
		if ok, err := patients.PatientExists(r.Context(), patientID); err != nil || !ok {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}

		items, err := svc.ListForDay(r.Context(), patientID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		now := svc.Now()
		byHour := make(map[string][]alertResponse)
		for _, it := range items {
			a := toAlertResponse(it, now)
			byHour[a.HourLabel] = append(byHour[a.HourLabel], a)
		}

		hours := make([]string, 0, len(byHour))
		for h := range byHour {
			hours = append(hours, h)
		}
		sort.Strings(hours)

		groups := make([]hourGroup, 0, len(hours))
		for _, h := range hours {
			evs := byHour[h]
			sort.SliceStable(evs, func(i, j int) bool {
				return evs[i].ScheduledAt.Before(evs[j].ScheduledAt)
			})
			groups = append(groups, hourGroup{Hour: h, Events: evs})
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

// OverdueDebugHandler lista los pendientes vencidos de un paciente. Solo se
// monta en desarrollo.
func OverdueDebugHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListOverduePending(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		now := svc.Now()
		out := make([]alertResponse, 0, len(items))
		for _, it := range items {
			out = append(out, toAlertResponse(it, now))
		}
		sortAlerts(out)
		writeJSON(w, http.StatusOK, out)
	}
}

func sortAlerts(out []alertResponse) {
	sort.SliceStable(out, func(i, j int) bool {
		bi := bucketOf(out[i].Status)
		bj := bucketOf(out[j].Status)
		if bi != bj {
			return bi < bj
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
}

func bucketOf(status string) int {
	switch EventStatus(status) {
	case StatusOverdue:
		return bucketOverdue
	case StatusUpcoming:
		return bucketUpcoming
	default:
		return bucketResolved
	}
}

// percentKey convierte el porcentaje en clave de orden; nil (sin datos) va
// detrás de cualquier valor real.
func percentKey(p *float64) float64 {
	if p == nil {
		return 101
	}
	return *p
}

func toEventResponse(e DoseEvent, now time.Time) eventResponse {
	c := Classify(e, now)
	return eventResponse{
		ID:           e.ID,
		MedicationID: e.MedicationID,
		ScheduledAt:  e.ScheduledAt,
		Taken:        e.Taken,
		Skipped:      e.Skipped,
		Note:         e.Note,
		Status:       string(c.Status),
		HourLabel:    c.HourLabel,
	}
}

func toAlertResponse(d EventDetail, now time.Time) alertResponse {
	return alertResponse{
		eventResponse:  toEventResponse(d.DoseEvent, now),
		MedicationName: d.MedicationName,
		MedicationDose: d.MedicationDose,
		PatientID:      d.PatientID,
		PatientName:    d.PatientName,
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
