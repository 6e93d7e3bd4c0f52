package domain

// TokenPair is the result of a successful login or reissue.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
