package domain

import "time"

// Role enumerates the user types known to the platform.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID           string
	Nickname     string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	AvatarURL    string
	RefreshToken string
	Role         Role
	Confirmed    bool
	Banned       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PrincipalSchemaVersion is embedded in every cached principal snapshot.
// Entries written with a different version are ignored on read so that
// deployments with diverging schemas never misinterpret each other's cache.
const PrincipalSchemaVersion = 1

// Principal is the identity resolved from a valid access token. It is an
// immutable snapshot: a refreshed view replaces the cache entry, entries are
// never mutated in place.
type Principal struct {
	SchemaVersion int       `json:"v"`
	UserID        string    `json:"user_id"`
	Email         string    `json:"email"`
	Nickname      string    `json:"nickname"`
	Role          Role      `json:"role"`
	Confirmed     bool      `json:"confirmed"`
	Banned        bool      `json:"banned"`
	CachedAt      time.Time `json:"cached_at"`
}

// NewPrincipal builds a snapshot of the authorization-relevant attributes of a user.
func NewPrincipal(user User, now time.Time) Principal {
	return Principal{
		SchemaVersion: PrincipalSchemaVersion,
		UserID:        user.ID,
		Email:         user.Email,
		Nickname:      user.Nickname,
		Role:          user.Role,
		Confirmed:     user.Confirmed,
		Banned:        user.Banned,
		CachedAt:      now.UTC(),
	}
}
