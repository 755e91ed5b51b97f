package auth

import "homestay/internal/domain"

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type RegisterRequest struct {
	FirstName       string `json:"firstName" validate:"required,min=2,max=50"`
	LastName        string `json:"lastName" validate:"required,min=2,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	RememberMe      bool   `json:"rememberMe"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// Result is the outcome of login and registration. Expected failures such as
// wrong credentials come back as Success=false, never as an error.
type Result struct {
	Success bool              `json:"success"`
	User    *domain.User      `json:"user,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Restored is the state found by RestoreSession.
type Restored struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
	Remembered    bool         `json:"remembered"`
	// Revalidated is true when the backend confirmed the stored token.
	Revalidated bool `json:"revalidated"`
}

type registerPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}
