package accounts_test

import (
	"testing"
	"time"

	accounts "github.com/coursekit/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationValidAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		account *accounts.Account
		want    bool
	}{
		{
			name:    "no code pair",
			account: &accounts.Account{},
			want:    false,
		},
		{
			name:    "expiry in the future",
			account: (&accounts.Account{}).SetVerification("482910", now.Add(time.Second)),
			want:    true,
		},
		{
			name:    "expiry equal to now is expired",
			account: (&accounts.Account{}).SetVerification("482910", now),
			want:    false,
		},
		{
			name:    "expiry in the past",
			account: (&accounts.Account{}).SetVerification("482910", now.Add(-time.Second)),
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.account.VerificationValidAt(now))
		})
	}
}

func TestVerificationPairMovesTogether(t *testing.T) {
	account := &accounts.Account{}

	account.SetVerification("482910", time.Now().Add(time.Minute))
	require.NotNil(t, account.VerificationCode)
	require.NotNil(t, account.VerificationExpiresAt)

	account.ClearVerification()
	assert.Nil(t, account.VerificationCode)
	assert.Nil(t, account.VerificationExpiresAt)
}

func TestResetPairMovesTogether(t *testing.T) {
	account := &accounts.Account{}

	account.SetResetToken("reset-token", time.Now().Add(time.Hour))
	require.NotNil(t, account.ResetToken)
	require.NotNil(t, account.ResetExpiresAt)

	account.ClearResetToken()
	assert.Nil(t, account.ResetToken)
	assert.Nil(t, account.ResetExpiresAt)
}

func TestHasCredential(t *testing.T) {
	account := &accounts.Account{}
	assert.False(t, account.HasCredential())

	empty := ""
	account.PasswordHash = &empty
	assert.False(t, account.HasCredential())

	account.SetPassword("$2a$14$not-a-real-hash")
	assert.True(t, account.HasCredential())
}

func TestLinkExternalIdentityForcesVerified(t *testing.T) {
	account := &accounts.Account{Verified: false}

	account.LinkExternalIdentity("google", "g-123")

	assert.True(t, account.Verified)
	require.NotNil(t, account.Provider)
	assert.Equal(t, "google", *account.Provider)
	require.NotNil(t, account.ProviderUserID)
	assert.Equal(t, "g-123", *account.ProviderUserID)
}

func TestInfoNeverExposesSecrets(t *testing.T) {
	account := (&accounts.Account{
		ID:       uuid.New(),
		Name:     "Peda",
		Email:    "peda@example.com",
		Role:     accounts.RoleStudent,
		Verified: true,
	}).SetPassword("$2a$14$hash").
		SetVerification("482910", time.Now()).
		SetResetToken("reset-token", time.Now())

	info := account.Info()

	assert.Equal(t, account.ID.String(), info.ID)
	assert.Equal(t, "Peda", info.Name)
	assert.Equal(t, "peda@example.com", info.Email)
	assert.Equal(t, accounts.RoleStudent, info.Role)
	assert.True(t, info.Verified)
}
