package patients

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testRepo struct {
	byID map[string]Patient
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Patient{}}
}

func (r *testRepo) Create(ctx context.Context, p Patient) error {
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Patient, error) {
	p, ok := r.byID[id]
	if !ok {
		return Patient{}, ErrNotFound
	}
	return p, nil
}

func (r *testRepo) List(ctx context.Context) ([]Patient, error) {
	out := make([]Patient, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	return out, nil
}

func (r *testRepo) Update(ctx context.Context, p Patient) error {
	if _, ok := r.byID[p.ID]; !ok {
		return ErrNotFound
	}
	r.byID[p.ID] = p
	return nil
}

func (r *testRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func TestCreate_RequiresName(t *testing.T) {
	svc := NewService(newTestRepo())

	_, err := svc.Create(context.Background(), UpsertInput{Name: "   "})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCreate_TrimsFields(t *testing.T) {
	svc := NewService(newTestRepo())

	p, err := svc.Create(context.Background(), UpsertInput{
		Name:  "  Rosa Delgado  ",
		Notes: "  con el desayuno  ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "Rosa Delgado" || p.Notes != "con el desayuno" {
		t.Fatalf("expected trimmed fields, got %+v", p)
	}
	if p.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestUpdate_MissingPatient(t *testing.T) {
	svc := NewService(newTestRepo())

	_, err := svc.Update(context.Background(), "no-such", UpsertInput{Name: "Rosa"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAge_DerivedFromDateOfBirth(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		dob  time.Time
		want int
	}{
		{"birthday passed", time.Date(1941, 3, 12, 0, 0, 0, 0, time.UTC), 84},
		{"birthday pending", time.Date(1941, 11, 2, 0, 0, 0, 0, time.UTC), 83},
		{"birthday today", time.Date(1941, 6, 10, 0, 0, 0, 0, time.UTC), 84},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Patient{DateOfBirth: &tc.dob}
			got := p.Age(now)
			if got == nil || *got != tc.want {
				t.Fatalf("expected %d, got %v", tc.want, got)
			}
		})
	}
}

func TestAge_NilWithoutDateOfBirth(t *testing.T) {
	if got := (Patient{}).Age(time.Now()); got != nil {
		t.Fatalf("expected nil age, got %d", *got)
	}
}
