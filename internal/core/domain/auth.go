package domain

// AuthContext contains authenticated user info for request context
type AuthContext struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// TokenClaims represents the verified JWT payload.
// Tokens are issued by the chat front end; this service only verifies them.
type TokenClaims struct {
	UserID    string `json:"sub"`
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Owned is implemented by every user-scoped record
type Owned interface {
	OwnerID() string
}

// Authorize is the single ownership guard for user-scoped records.
// A missing record and a record owned by someone else both yield ErrNotFoundOrForbidden,
// so callers cannot learn whether other users' data exists.
// OwnerID implementations must be nil-receiver safe.
func Authorize[T Owned](record T, userID string) (T, error) {
	var zero T
	if userID == "" || record.OwnerID() != userID {
		return zero, ErrNotFoundOrForbidden
	}
	return record, nil
}
