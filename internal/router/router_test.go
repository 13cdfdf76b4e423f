package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"careline/internal/config"
	"careline/internal/router"

	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Port:          "0",
		Env:           "development",
		AppName:       "careline-test",
		RxNormBaseURL: "https://rxnav.test/REST",
	}
	h := router.NewRouter(router.Options{Cfg: cfg, Log: zerolog.Nop()})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func doReq(t *testing.T, baseURL, method, path, userID, role string, body any) (int, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, baseURL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-Debug-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-Debug-Role", role)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

func TestHTTP_EndToEnd_MedicationLifecycle(t *testing.T) {
	ts := newTestServer(t)
	admin := "admin-1"

	// 1) Sin identidad no hay acceso
	{
		st, _ := doReq(t, ts.URL, "GET", "/patients", "", "", nil)
		if st != http.StatusUnauthorized {
			t.Fatalf("expected 401 without identity, got %d", st)
		}
	}

	// 2) FAMILY no puede crear pacientes
	{
		st, _ := doReq(t, ts.URL, "POST", "/patients", "family-1", "FAMILY", map[string]any{
			"name": "Rosa Delgado",
		})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 for FAMILY create, got %d", st)
		}
	}

	// 3) Admin crea paciente
	var patientID string
	{
		st, body := doReq(t, ts.URL, "POST", "/patients", admin, "CARE_ADMIN", map[string]any{
			"name":          "Rosa Delgado",
			"date_of_birth": "1941-03-12",
			"diagnosis":     "Hipertensión",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 create patient, got %d body=%s", st, string(body))
		}
		var p struct {
			ID  string `json:"id"`
			Age *int   `json:"age"`
		}
		if err := json.Unmarshal(body, &p); err != nil {
			t.Fatalf("unmarshal patient: %v", err)
		}
		if p.ID == "" {
			t.Fatalf("expected patient id")
		}
		if p.Age == nil {
			t.Fatalf("expected derived age")
		}
		patientID = p.ID
	}

	// 4) Admin crea medicamento con inicio una hora atrás: el evento inicial
	//    ya está vencido
	var medicationID string
	{
		start := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
		st, body := doReq(t, ts.URL, "POST", "/patients/"+patientID+"/medications", admin, "CARE_ADMIN", map[string]any{
			"name":            "Enalapril",
			"dose":            "10 mg",
			"frequency_hours": 8,
			"start_time":      start,
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 create medication, got %d body=%s", st, string(body))
		}
		var m struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &m); err != nil {
			t.Fatalf("unmarshal medication: %v", err)
		}
		medicationID = m.ID
	}

	// 5) La alerta aparece como OVERDUE
	var eventID string
	{
		st, body := doReq(t, ts.URL, "GET", "/alerts", "nurse-1", "NURSE", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 alerts, got %d body=%s", st, string(body))
		}
		var alerts []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &alerts); err != nil {
			t.Fatalf("unmarshal alerts: %v", err)
		}
		if len(alerts) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts))
		}
		if alerts[0].Status != "OVERDUE" {
			t.Fatalf("expected OVERDUE alert, got %s", alerts[0].Status)
		}
		eventID = alerts[0].ID
	}

	// 6) La enfermera marca la dosis tomada; se materializa el siguiente
	//    evento pendiente
	{
		st, body := doReq(t, ts.URL, "POST", "/dose-events/"+eventID+"/take", "nurse-1", "NURSE", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 take, got %d body=%s", st, string(body))
		}
		var ev struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.Status != "TAKEN" {
			t.Fatalf("expected TAKEN, got %s", ev.Status)
		}

		st, body = doReq(t, ts.URL, "GET", "/medications/"+medicationID+"/events", "nurse-1", "NURSE", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 events, got %d", st)
		}
		var events []struct {
			Taken bool `json:"taken"`
		}
		if err := json.Unmarshal(body, &events); err != nil {
			t.Fatalf("unmarshal events: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events after take, got %d", len(events))
		}
	}

	// 7) FAMILY puede leer la adherencia
	{
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patientID+"/adherence", "family-1", "FAMILY", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 adherence, got %d body=%s", st, string(body))
		}
		var ov struct {
			Today struct {
				TakenDue int      `json:"taken_due"`
				Percent  *float64 `json:"percent"`
			} `json:"today"`
		}
		if err := json.Unmarshal(body, &ov); err != nil {
			t.Fatalf("unmarshal adherence: %v", err)
		}
		if ov.Today.TakenDue != 1 {
			t.Fatalf("expected 1 taken due today, got %d", ov.Today.TakenDue)
		}
		if ov.Today.Percent == nil || *ov.Today.Percent != 100.0 {
			t.Fatalf("expected 100%% today, got %v", ov.Today.Percent)
		}
	}

	// 8) El tablero tiene una fila por paciente
	{
		st, body := doReq(t, ts.URL, "GET", "/adherence", "nurse-1", "NURSE", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 dashboard, got %d", st)
		}
		var rows []struct {
			PatientID    string `json:"patient_id"`
			OverdueCount int    `json:"overdue_count"`
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			t.Fatalf("unmarshal dashboard: %v", err)
		}
		if len(rows) != 1 || rows[0].PatientID != patientID {
			t.Fatalf("expected dashboard row for patient, got %+v", rows)
		}
		if rows[0].OverdueCount != 0 {
			t.Fatalf("expected no overdue after take, got %d", rows[0].OverdueCount)
		}
	}

	// 9) Solo CARE_ADMIN ve la auditoría
	{
		st, _ := doReq(t, ts.URL, "GET", "/audit", "nurse-1", "NURSE", nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 audit for NURSE, got %d", st)
		}

		st, body := doReq(t, ts.URL, "GET", "/audit", admin, "CARE_ADMIN", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 audit, got %d", st)
		}
		var entries []struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(body, &entries); err != nil {
			t.Fatalf("unmarshal audit: %v", err)
		}
		if len(entries) == 0 {
			t.Fatalf("expected audit entries for the session")
		}
	}

	// 10) Borrar el paciente arrastra todo
	{
		st, _ := doReq(t, ts.URL, "DELETE", "/patients/"+patientID, admin, "CARE_ADMIN", nil)
		if st != http.StatusNoContent {
			t.Fatalf("expected 204 delete, got %d", st)
		}

		st, _ = doReq(t, ts.URL, "GET", "/patients/"+patientID, admin, "CARE_ADMIN", nil)
		if st != http.StatusNotFound {
			t.Fatalf("expected 404 after delete, got %d", st)
		}

		st, body := doReq(t, ts.URL, "GET", "/alerts", admin, "CARE_ADMIN", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 alerts, got %d", st)
		}
		var alerts []any
		if err := json.Unmarshal(body, &alerts); err != nil {
			t.Fatalf("unmarshal alerts: %v", err)
		}
		if len(alerts) != 0 {
			t.Fatalf("expected no alerts after cascade delete, got %d", len(alerts))
		}
	}
}

func TestHTTP_MedicationEditResetsSchedule(t *testing.T) {
	ts := newTestServer(t)
	admin := "admin-1"

	_, body := doReq(t, ts.URL, "POST", "/patients", admin, "CARE_ADMIN", map[string]any{
		"name": "Ernesto Cabrera",
	})
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("unmarshal patient: %v", err)
	}

	// pauta futura: evento sembrado en start_time
	start := time.Now().Add(2 * time.Hour).UTC()
	_, body = doReq(t, ts.URL, "POST", "/patients/"+p.ID+"/medications", admin, "CARE_ADMIN", map[string]any{
		"name":            "Metformina",
		"dose":            "850 mg",
		"frequency_hours": 24,
		"start_time":      start.Format(time.RFC3339),
	})
	var m struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal medication: %v", err)
	}

	// editar corre el inicio: el pendiente viejo se reemplaza por uno nuevo
	newStart := time.Now().Add(6 * time.Hour).UTC()
	st, body := doReq(t, ts.URL, "PUT", "/medications/"+m.ID, admin, "CARE_ADMIN", map[string]any{
		"name":            "Metformina",
		"dose":            "850 mg",
		"frequency_hours": 12,
		"start_time":      newStart.Format(time.RFC3339),
	})
	if st != http.StatusOK {
		t.Fatalf("expected 200 update, got %d body=%s", st, string(body))
	}

	st, body = doReq(t, ts.URL, "GET", "/medications/"+m.ID+"/events", admin, "CARE_ADMIN", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 events, got %d", st)
	}
	var events []struct {
		ScheduledAt time.Time `json:"scheduled_at"`
		Taken       bool      `json:"taken"`
		Skipped     bool      `json:"skipped"`
	}
	if err := json.Unmarshal(body, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected single pending event after reset, got %d", len(events))
	}
	if !events[0].ScheduledAt.Equal(newStart.Truncate(time.Second)) {
		t.Fatalf("expected event at new start %s, got %s", newStart, events[0].ScheduledAt)
	}
}

func TestHTTP_ToggleActivePurgesAndReseeds(t *testing.T) {
	ts := newTestServer(t)
	admin := "admin-1"

	_, body := doReq(t, ts.URL, "POST", "/patients", admin, "CARE_ADMIN", map[string]any{
		"name": "Rosa Delgado",
	})
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("unmarshal patient: %v", err)
	}

	start := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	_, body = doReq(t, ts.URL, "POST", "/patients/"+p.ID+"/medications", admin, "CARE_ADMIN", map[string]any{
		"name":            "Apixabán",
		"dose":            "5 mg",
		"frequency_hours": 12,
		"start_time":      start,
	})
	var m struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("unmarshal medication: %v", err)
	}

	// pausar purga el pendiente vencido
	st, _ := doReq(t, ts.URL, "POST", "/medications/"+m.ID+"/toggle-active", admin, "CARE_ADMIN", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 toggle off, got %d", st)
	}
	_, body = doReq(t, ts.URL, "GET", "/medications/"+m.ID+"/events", admin, "CARE_ADMIN", nil)
	var events []any
	if err := json.Unmarshal(body, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events after pause, got %d", len(events))
	}

	// reactivar materializa un pendiente nuevo
	st, _ = doReq(t, ts.URL, "POST", "/medications/"+m.ID+"/toggle-active", admin, "CARE_ADMIN", nil)
	if st != http.StatusOK {
		t.Fatalf("expected 200 toggle on, got %d", st)
	}
	_, body = doReq(t, ts.URL, "GET", "/medications/"+m.ID+"/events", admin, "CARE_ADMIN", nil)
	if err := json.Unmarshal(body, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected reseeded pending event, got %d", len(events))
	}
}
