package domain

import "time"

// OAuthState captures the state value persisted between the authorization
// redirect and the provider callback.
type OAuthState struct {
	State       string
	RedirectURI string
	CreatedAt   time.Time
}

// ProviderClaims represents the normalized identity attributes asserted by an
// external OAuth2 provider.
type ProviderClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// ProviderTokens models the response from a provider token endpoint.
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	TokenType    string
	IDToken      string
	Scope        string
}
