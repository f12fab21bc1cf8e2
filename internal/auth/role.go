package auth

import "fmt"

// Role — роль пользователя. Закрытый набор значений:
// обычный пользователь и администратор.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole преобразует строку в Role.
// Любое значение вне закрытого набора — ошибка.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}
