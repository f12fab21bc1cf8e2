package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Secret — глобальный секрет для подписи JWT-токенов.
// ⚠️ В реальном проекте рекомендуется брать из переменной окружения или безопасного хранилища.
var Secret []byte

// InitSecret устанавливает секрет для JWT.
// Обычно вызывается при старте сервера.
func InitSecret(secret []byte) {
	Secret = secret
}

// Identity — подтверждённая личность пользователя, извлечённая из токена.
type Identity struct {
	UserID   int64
	Username string
	Role     Role
}

// IssueJWT создаёт JWT-токен для указанного пользователя.
// Токен содержит поля:
// - "sub" — субъект (username)
// - "uid" — идентификатор пользователя в БД
// - "role" — роль пользователя
// - "iat" — время выпуска (issued at)
// - "exp" — время истечения (expiration), здесь 24 часа
func IssueJWT(userID int64, username string, role Role) (string, error) {
	claims := jwt.MapClaims{
		"sub":  username,
		"uid":  userID,
		"role": string(role),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	}
	// Создаём новый JWT с алгоритмом HMAC SHA256
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	// Подписываем токен с секретом
	return token.SignedString(Secret)
}

// ParseJWT проверяет токен и возвращает Identity.
// 1. Проверяет подпись токена с помощью Secret.
// 2. Проверяет метод подписи (только HMAC).
// 3. Проверяет валидность токена (в том числе срок действия).
// 4. Извлекает claims: "sub", "uid" и "role". Роль вне закрытого набора — ошибка.
func ParseJWT(tokenStr string) (*Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// Проверяем, что метод подписи ожидаемый (HMAC)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	// Приводим claims к типу MapClaims
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}

	// Получаем username из поля "sub"
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("missing subject")
	}

	// Роль обязана входить в закрытый набор
	roleStr, _ := claims["role"].(string)
	role, err := ParseRole(roleStr)
	if err != nil {
		return nil, err
	}

	// JSON-числа приходят как float64
	uid, _ := claims["uid"].(float64)

	return &Identity{
		UserID:   int64(uid),
		Username: sub,
		Role:     role,
	}, nil
}
