package auth

// Role es el rol de cuidado ya resuelto por el boundary de auth.
// Los handlers solo consumen el rol; nunca lo re-derivan de headers.
type Role string

const (
	RoleCareAdmin Role = "CARE_ADMIN"
	RoleNurse     Role = "NURSE"
	RoleFamily    Role = "FAMILY"
)

// ParseRole normaliza un rol externo; valores desconocidos caen a FAMILY
// (solo lectura).
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleCareAdmin, RoleNurse, RoleFamily:
		return Role(s)
	default:
		return RoleFamily
	}
}

// Claims representa la identidad autenticada con su rol ya resuelto.
type Claims struct {
	UserID string
	Role   Role
}

// HasAnyRole reporta si el claim tiene alguno de los roles dados.
func (c Claims) HasAnyRole(roles ...Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
