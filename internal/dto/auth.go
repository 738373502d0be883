package dto

import "strings"

// LoginRequest captures admin credential input.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims and lower-cases the email. The password is left untouched.
func (r LoginRequest) Normalize() LoginRequest {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	return r
}

// Complete reports whether both credentials are present.
func (r LoginRequest) Complete() bool {
	return r.Email != "" && r.Password != ""
}

// LoginResponse contains the issued access token. ExpiresIn is in seconds.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
