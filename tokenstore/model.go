package tokenstore

// Session defines a public type used by authgate APIs.
//
// Session instances are point-in-time snapshots of an established session,
// built for persistence and treated as immutable once encoded.
type Session struct {
	UserID        string
	Email         string
	Name          string
	AvatarURL     string
	EmailVerified bool

	AccessToken  string
	RefreshToken string

	LastLoginAt int64
	ExpiresAt   int64
}
