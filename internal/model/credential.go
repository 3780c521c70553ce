package model

import "time"

// Credential is the reputation API token pair issued after a successful
// wallet signature verification. One per authenticated user.
type Credential struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken,omitempty"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt,omitempty"`
	Address               string    `json:"address"`
}

// Live reports whether the access token can still authenticate a call.
// Expiry is a hard boundary: there is no automatic refresh, the user
// re-authenticates instead.
func (c *Credential) Live(now time.Time) bool {
	return c.AccessToken != "" && now.Before(c.AccessTokenExpiresAt)
}

// AuthResponse is the wire shape returned by the verify-address endpoint.
type AuthResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
}

// VerifyAddressRequest carries the wallet proof collected by the
// connect-wallet side channel.
type VerifyAddressRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}
