package domain

// TokenPair is the access/refresh token pair of the current session
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// IsZero reports whether the pair holds no access token
func (p TokenPair) IsZero() bool {
	return p.AccessToken == ""
}

// User is the authenticated user's profile
type User struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
	IsPremium         bool   `json:"isPremium"`
}

// AuthResult is returned by login and register
type AuthResult struct {
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Tokens returns the pair carried by the result
func (r AuthResult) Tokens() TokenPair {
	return TokenPair{AccessToken: r.Token, RefreshToken: r.RefreshToken}
}

// Credentials are used for login
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is used to create an account
type Registration struct {
	Username          string `json:"username"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`
}

// Language is a content language offered by the backend
type Language struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}
