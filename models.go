package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationCodeTTL is how long an emailed verification code stays valid.
const VerificationCodeTTL = 10 * time.Minute

// ResetTokenTTL is how long a password reset token stays valid.
const ResetTokenTTL = time.Hour

// Account is the persisted identity record. Email is the natural key for
// local lookups (case-insensitive uniqueness, case-preserving storage);
// (provider, provider_user_id) is the secondary key for external logins.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID    uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name  string    `bun:"name,notnull" json:"name,omitempty"`
	Email string    `bun:"email,notnull,unique" json:"email,omitempty"`
	Role  Role      `bun:"role,notnull" json:"role,omitempty"`

	// PasswordHash is nil for accounts created purely through an external
	// provider. Password login on such accounts fails with ErrNoCredential
	// rather than comparing against a placeholder.
	PasswordHash *string `bun:"password_hash" json:"-"`

	Verified              bool       `bun:"is_verified" json:"is_verified,omitempty"`
	VerificationCode      *string    `bun:"verification_code" json:"-"`
	VerificationExpiresAt *time.Time `bun:"verification_expires_at,nullzero" json:"-"`

	ResetToken     *string    `bun:"reset_token" json:"-"`
	ResetExpiresAt *time.Time `bun:"reset_expires_at,nullzero" json:"-"`

	Provider       *string `bun:"provider" json:"provider,omitempty"`
	ProviderUserID *string `bun:"provider_user_id" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// SetVerification stores a fresh code/expiry pair. Code and expiry are
// always written together.
func (a *Account) SetVerification(code string, expiresAt time.Time) *Account {
	a.VerificationCode = &code
	a.VerificationExpiresAt = &expiresAt
	return a
}

// ClearVerification drops the code/expiry pair together.
func (a *Account) ClearVerification() *Account {
	a.VerificationCode = nil
	a.VerificationExpiresAt = nil
	return a
}

// SetResetToken stores a fresh reset token/expiry pair, overwriting any
// prior token. The newest request always wins.
func (a *Account) SetResetToken(token string, expiresAt time.Time) *Account {
	a.ResetToken = &token
	a.ResetExpiresAt = &expiresAt
	return a
}

// ClearResetToken drops the token/expiry pair together.
func (a *Account) ClearResetToken() *Account {
	a.ResetToken = nil
	a.ResetExpiresAt = nil
	return a
}

// SetPassword replaces the stored hash. It expects an already-hashed value;
// plaintext never touches the model.
func (a *Account) SetPassword(hash string) *Account {
	a.PasswordHash = &hash
	return a
}

// HasCredential reports whether password login is possible at all.
func (a *Account) HasCredential() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// LinkExternalIdentity attaches a (provider, provider user id) pair and
// marks the account verified: control of the email was proven externally.
func (a *Account) LinkExternalIdentity(provider, providerUserID string) *Account {
	a.Provider = &provider
	a.ProviderUserID = &providerUserID
	a.Verified = true
	return a
}

// VerificationValidAt reports whether the stored code pair is usable at
// the given instant. The boundary is exclusive: now == expiry is expired.
func (a *Account) VerificationValidAt(now time.Time) bool {
	return a.VerificationCode != nil &&
		a.VerificationExpiresAt != nil &&
		a.VerificationExpiresAt.After(now)
}

// UserInfo is the projection returned to authenticated callers. It never
// carries hashes, codes, or tokens.
type UserInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Verified bool   `json:"is_verified"`
}

// Info builds the caller-facing projection of the account.
func (a *Account) Info() UserInfo {
	return UserInfo{
		ID:       a.ID.String(),
		Name:     a.Name,
		Email:    a.Email,
		Role:     a.Role,
		Verified: a.Verified,
	}
}
