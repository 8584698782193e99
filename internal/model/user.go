package model

import "time"

// Roles carried in access tokens.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents an application user record as stored in the `users`
// table.  Besides credentials it holds the identity fields copied into
// ticket snapshots.
//
// Fields:
//
//	ID            – primary key identifier of the user.
//	Email         – unique email address.
//	PasswordHash  – bcrypt hashed password.
//	Role          – USER or ADMIN.
//	FirstName     – display first name.
//	LastName      – display last name.
//	ContactHandle – optional phone number or messaging handle.
//	IsActive      – false once an admin deactivates the account.
type User struct {
	ID            uint64    // users.id
	Email         string    // users.email
	PasswordHash  string    // users.password_hash
	Role          string    // users.role
	FirstName     string    // users.first_name
	LastName      string    // users.last_name
	ContactHandle string    // users.contact_handle
	IsActive      bool      // users.is_active
	CreatedAt     time.Time // users.created_at
	UpdatedAt     time.Time // users.updated_at
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Snapshot copies the display identity stored on new requests.
func (u User) Snapshot() UserSnapshot {
	return UserSnapshot{FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

// Contact copies the identity handed to the counterparty on completion.
func (u User) Contact() ContactSnapshot {
	return ContactSnapshot{
		UserID:        u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		ContactHandle: u.ContactHandle,
		Email:         u.Email,
	}
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
