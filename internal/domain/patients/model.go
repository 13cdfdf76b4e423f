package patients

import "time"

// Patient es la ficha demográfica y de contacto de una persona mayor bajo
// cuidado. Es la raíz de agregación: borrar un paciente arrastra sus
// medicamentos, eventos de dosis y caídas.
type Patient struct {
	ID string

	Name  string
	Notes string

	DateOfBirth *time.Time // solo fecha; la hora se ignora
	Diagnosis   string
	Allergies   string

	EmergencyContactName     string
	EmergencyContactPhone    string
	EmergencyContactRelation string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Age devuelve la edad en años cumplidos a la fecha dada, o nil si no hay
// fecha de nacimiento o la cuenta da negativa.
func (p Patient) Age(now time.Time) *int {
	if p.DateOfBirth == nil {
		return nil
	}
	dob := *p.DateOfBirth
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return nil
	}
	return &years
}
