package auth

import "context"

// Verifier verifica un token y devuelve claims (identidad + rol) o error.
// La resolución identidad→rol ocurre una sola vez aquí, en el boundary.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
