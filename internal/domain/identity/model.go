package identity

// Identity is an authenticated user as reported by the identity provider.
// A nil *Identity means signed out.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Same reports whether a and b name the same user. Two nil identities are the same.
func Same(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserID == b.UserID
}
