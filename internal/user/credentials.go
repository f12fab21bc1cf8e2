package user

// Credentials — тело запросов регистрации и логина.
// Email и Role используются только при регистрации.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}
