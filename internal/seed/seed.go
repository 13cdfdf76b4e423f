// Package seed carga datos de demostración para probar la app sin tocar
// pacientes reales. Solo se expone en desarrollo.
package seed

import (
	"context"
	"time"

	"careline/internal/domain/doses"
	"careline/internal/domain/falls"
	"careline/internal/domain/medications"
	"careline/internal/domain/patients"
)

// Result resume lo creado para que el endpoint de dev lo devuelva.
type Result struct {
	Patients    []string `json:"patients"`
	Medications []string `json:"medications"`
}

// Demo crea dos pacientes mayores con pautas activas, historial de dosis y
// una caída registrada. Pasa por los servicios para que el motor materialice
// los eventos como en producción.
func Demo(
	ctx context.Context,
	patientsSvc *patients.Service,
	medsSvc *medications.Service,
	dosesSvc *doses.Service,
	fallsSvc *falls.Service,
) (Result, error) {
	var res Result
	now := dosesSvc.Now()

	rosa, err := patientsSvc.Create(ctx, patients.UpsertInput{
		Name:        "Rosa Delgado",
		Notes:       "Prefiere tomar la medicación con el desayuno.",
		DateOfBirth: ptrTime(time.Date(1941, time.March, 12, 0, 0, 0, 0, time.UTC)),
		Diagnosis:   "Hipertensión, artrosis de rodilla",
		Allergies:   "Penicilina",

		EmergencyContactName:     "Marta Delgado",
		EmergencyContactPhone:    "+34 612 345 678",
		EmergencyContactRelation: "Hija",
	})
	if err != nil {
		return res, err
	}
	res.Patients = append(res.Patients, rosa.ID)

	ernesto, err := patientsSvc.Create(ctx, patients.UpsertInput{
		Name:        "Ernesto Cabrera",
		Notes:       "Usa andador dentro de casa.",
		DateOfBirth: ptrTime(time.Date(1938, time.November, 2, 0, 0, 0, 0, time.UTC)),
		Diagnosis:   "Diabetes tipo 2, fibrilación auricular",

		EmergencyContactName:     "Luis Cabrera",
		EmergencyContactPhone:    "+34 699 876 543",
		EmergencyContactRelation: "Hijo",
	})
	if err != nil {
		return res, err
	}
	res.Patients = append(res.Patients, ernesto.ID)

	type medFixture struct {
		patientID string
		input     medications.UpsertInput
		takes     int // resoluciones "tomada" para generar historial
		skips     int // resoluciones "omitida" a continuación
	}

	fixtures := []medFixture{
		{
			patientID: rosa.ID,
			input: medications.UpsertInput{
				Name:           "Enalapril",
				Dose:           "10 mg",
				FrequencyHours: 12,
				Notes:          "Controlar tensión antes de la toma.",
				StartTime:      ptrTime(now.Add(-72 * time.Hour)),
			},
			takes: 4,
			skips: 1,
		},
		{
			patientID: rosa.ID,
			input: medications.UpsertInput{
				Name:           "Paracetamol",
				Dose:           "650 mg",
				FrequencyHours: 8,
				StartTime:      ptrTime(now.Add(-24 * time.Hour)),
			},
			takes: 2,
		},
		{
			patientID: ernesto.ID,
			input: medications.UpsertInput{
				Name:           "Metformina",
				Dose:           "850 mg",
				FrequencyHours: 24,
				Notes:          "Con la cena.",
				StartTime:      ptrTime(now.Add(-96 * time.Hour)),
			},
			takes: 3,
		},
		{
			patientID: ernesto.ID,
			input: medications.UpsertInput{
				Name:           "Apixabán",
				Dose:           "5 mg",
				FrequencyHours: 12,
				StartTime:      ptrTime(now.Add(-36 * time.Hour)),
			},
			takes: 1,
			skips: 1,
		},
	}

	for _, fx := range fixtures {
		m, err := medsSvc.Create(ctx, fx.patientID, fx.input)
		if err != nil {
			return res, err
		}
		res.Medications = append(res.Medications, m.ID)

		if err := dosesSvc.SeedInitial(ctx, doses.Medication{
			ID:             m.ID,
			Active:         m.Active,
			FrequencyHours: m.FrequencyHours,
			StartTime:      m.StartTime,
			EndTime:        m.EndTime,
		}); err != nil {
			return res, err
		}

		// Resolver pendientes en orden para construir historial; cada
		// resolución materializa el siguiente evento.
		for i := 0; i < fx.takes; i++ {
			if err := resolveLatest(ctx, dosesSvc, m.ID, true); err != nil {
				return res, err
			}
		}
		for i := 0; i < fx.skips; i++ {
			if err := resolveLatest(ctx, dosesSvc, m.ID, false); err != nil {
				return res, err
			}
		}
	}

	if _, err := fallsSvc.Create(ctx, ernesto.ID, falls.CreateInput{
		OccurredAt: ptrTime(now.Add(-48 * time.Hour)),
		Location:   "Baño",
		Note:       "Resbalón al salir de la ducha, sin lesiones visibles.",
	}); err != nil {
		return res, err
	}

	return res, nil
}

func resolveLatest(ctx context.Context, dosesSvc *doses.Service, medicationID string, taken bool) error {
	events, err := dosesSvc.ListForMedication(ctx, medicationID, 1)
	if err != nil {
		return err
	}
	if len(events) == 0 || events[0].Resolved() {
		return nil
	}
	if taken {
		return dosesSvc.MarkTaken(ctx, events[0].ID)
	}
	return dosesSvc.MarkSkipped(ctx, events[0].ID)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
