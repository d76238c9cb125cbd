package identity

import (
	"github.com/golang-jwt/jwt/v5"
)

// State is carried through the provider round trip as a signed token.
type State struct {
	Role       string `json:"role,omitempty"`
	HospitalID int64  `json:"hospital_id,omitempty"`
	Subdomain  string `json:"subdomain,omitempty"`
	Nonce      string `json:"nonce"`
	jwt.RegisteredClaims
}
