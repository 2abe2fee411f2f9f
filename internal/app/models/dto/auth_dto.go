package dto

// LoginRequest represents login credentials. Instructors must also send their
// security code.
type LoginRequest struct {
	Enrollment   string `json:"enrollment" binding:"required,enrollment"`
	Password     string `json:"password" binding:"required"`
	Role         string `json:"role" binding:"required,oneof=student instructor professor teacher"`
	SecurityCode string `json:"securityCode"`
}

// LoginResponse carries the access token and who it was issued to.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
	Enrollment  string `json:"enrollment"`
	FullName    string `json:"fullName"`
	Role        string `json:"role"`
}
