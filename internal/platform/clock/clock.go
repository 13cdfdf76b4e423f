// Package clock centraliza la noción de "ahora". Los servicios reciben un
// Now inyectado en lugar de leer time.Now directamente, así el scheduling es
// determinista en tests y la demo puede correr con el reloj corrido.
package clock

import "time"

// Now es la fuente de tiempo que consumen los servicios.
type Now func() time.Time

// System devuelve el reloj real.
func System() Now {
	return time.Now
}

// WithOffset devuelve el reloj real desplazado una cantidad fija de minutos.
// Solo para demos; el offset viene de configuración, nunca de un global.
func WithOffset(minutes int) Now {
	if minutes == 0 {
		return time.Now
	}
	off := time.Duration(minutes) * time.Minute
	return func() time.Time {
		return time.Now().Add(off)
	}
}

// Fixed devuelve siempre el mismo instante (tests).
func Fixed(t time.Time) Now {
	return func() time.Time {
		return t
	}
}
