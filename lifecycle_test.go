package accounts_test

import (
	"context"
	"sync"
	"testing"
	"time"

	accounts "github.com/coursekit/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type lifecycleFixture struct {
	repo     *MockAccounts
	notifier *MockNotifier
	tokens   *MockTokenService
	svc      *accounts.Lifecycle
}

func newLifecycleFixture() *lifecycleFixture {
	repo := &MockAccounts{}
	notifier := &MockNotifier{}
	tokens := &MockTokenService{}

	svc := accounts.NewLifecycle(NewMockRepositoryManager(repo), notifier, tokens).
		WithClock(func() time.Time { return testNow })

	return &lifecycleFixture{
		repo:     repo,
		notifier: notifier,
		tokens:   tokens,
		svc:      svc,
	}
}

func recordNotFound() error {
	return repository.NewRecordNotFound()
}

var (
	hashOnce sync.Once
	testHash string
)

// testPasswordHash returns a bcrypt hash of "correct-horse-battery",
// computed once since hashing is intentionally slow.
func testPasswordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		hash, err := accounts.HashPassword("correct-horse-battery")
		if err != nil {
			t.Fatalf("hashing fixture password: %v", err)
		}
		testHash = hash
	})
	return testHash
}

type stubClaims struct {
	uid  string
	role string
}

func (c stubClaims) Subject() string     { return c.uid }
func (c stubClaims) UserID() string      { return c.uid }
func (c stubClaims) Role() string        { return c.role }
func (c stubClaims) Expires() time.Time  { return testNow.Add(time.Hour) }
func (c stubClaims) IssuedAt() time.Time { return testNow }

func TestRegisterCreatesUnverifiedAccount(t *testing.T) {
	f := newLifecycleFixture()

	f.repo.On("GetByEmailTx", mock.Anything, mock.Anything, "peda@example.com").
		Return(nil, recordNotFound()).Once()

	var created *accounts.Account
	f.repo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil).
		Run(func(args mock.Arguments) {
			created = args.Get(2).(*accounts.Account)
		}).Once()

	var sentCode string
	f.notifier.On("SendVerificationCode", mock.Anything, "peda@example.com", "Peda", mock.AnythingOfType("string")).
		Return(nil).
		Run(func(args mock.Arguments) {
			sentCode = args.String(3)
		}).Once()

	result, err := f.svc.Register(context.Background(), accounts.RegisterInput{
		Name:     "Peda",
		Email:    "peda@example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.Equal(t, accounts.MsgRegistered, result.Message)

	require.NotNil(t, created)
	assert.False(t, created.Verified)
	assert.Equal(t, accounts.RoleUser, created.Role)
	require.NotNil(t, created.VerificationCode)
	assert.Equal(t, *created.VerificationCode, sentCode)
	assert.Len(t, sentCode, accounts.VerificationCodeLength)
	require.NotNil(t, created.VerificationExpiresAt)
	assert.Equal(t, testNow.Add(accounts.VerificationCodeTTL), *created.VerificationExpiresAt)
	require.NotNil(t, created.PasswordHash)
	assert.NoError(t, accounts.ComparePasswordAndHash("correct-horse-battery", *created.PasswordHash))

	f.repo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestRegisterExistingUnverifiedRotatesCode(t *testing.T) {
	f := newLifecycleFixture()

	oldCode := "111111"
	existing := (&accounts.Account{
		ID:    uuid.New(),
		Name:  "Old Name",
		Email: "peda@example.com",
		Role:  accounts.RoleUser,
	}).SetVerification(oldCode, testNow.Add(-time.Minute))

	f.repo.On("GetByEmailTx", mock.Anything, mock.Anything, "peda@example.com").
		Return(existing, nil).Once()
	f.repo.On("SaveTx", mock.Anything, mock.Anything, existing).
		Return(nil, nil).Once()

	var sentCode string
	f.notifier.On("SendVerificationCode", mock.Anything, "peda@example.com", "New Name", mock.AnythingOfType("string")).
		Return(nil).
		Run(func(args mock.Arguments) {
			sentCode = args.String(3)
		}).Once()

	result, err := f.svc.Register(context.Background(), accounts.RegisterInput{
		Name:     "New Name",
		Email:    "peda@example.com",
		Password: "a-brand-new-password",
	})
	require.NoError(t, err)

	assert.False(t, result.Created)
	assert.Equal(t, accounts.MsgCodeResent, result.Message)

	assert.Equal(t, "New Name", existing.Name)
	require.NotNil(t, existing.VerificationCode)
	assert.NotEqual(t, oldCode, *existing.VerificationCode)
	assert.Equal(t, *existing.VerificationCode, sentCode)
	assert.Equal(t, testNow.Add(accounts.VerificationCodeTTL), *existing.VerificationExpiresAt)
	assert.NoError(t, accounts.ComparePasswordAndHash("a-brand-new-password", *existing.PasswordHash))

	f.repo.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "CreateTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterVerifiedEmailRejected(t *testing.T) {
	f := newLifecycleFixture()

	existing := &accounts.Account{
		ID:       uuid.New(),
		Email:    "peda@example.com",
		Verified: true,
	}

	f.repo.On("GetByEmailTx", mock.Anything, mock.Anything, "peda@example.com").
		Return(existing, nil).Once()

	_, err := f.svc.Register(context.Background(), accounts.RegisterInput{
		Name:     "Peda",
		Email:    "peda@example.com",
		Password: "whatever-password",
	})
	assert.ErrorIs(t, err, accounts.ErrAlreadyRegistered)

	f.notifier.AssertNotCalled(t, "SendVerificationCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "SaveTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterNotificationFailureFailsOperation(t *testing.T) {
	f := newLifecycleFixture()

	f.repo.On("GetByEmailTx", mock.Anything, mock.Anything, "peda@example.com").
		Return(nil, recordNotFound()).Once()
	f.repo.On("CreateTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil).Once()
	f.notifier.On("SendVerificationCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(goerrors.New("smtp unreachable", goerrors.CategoryOperation)).Once()

	_, err := f.svc.Register(context.Background(), accounts.RegisterInput{
		Name:     "Peda",
		Email:    "peda@example.com",
		Password: "correct-horse-battery",
	})
	require.Error(t, err)

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, accounts.TextCodeNotificationFailed, rich.TextCode)
}

func TestVerifyMarksAccountVerified(t *testing.T) {
	f := newLifecycleFixture()

	account := (&accounts.Account{
		ID:    uuid.New(),
		Email: "peda@example.com",
	}).SetVerification("482910", testNow.Add(5*time.Minute))

	f.repo.On("GetByEmailTx", mock.Anything, mock.Anything, "peda@example.com").
		Return(account, nil).Once()
	f.repo.On("SaveTx", mock.Anything, mock.Anything, account).
		Return(nil, nil).Once()

	err := f.svc.Verify(context.Background(), "peda@example.com", "482910")
	require.NoError(t, err)

	assert.True(t, account.Verified)
	assert.Nil(t, account.VerificationCode)
	assert.Nil(t, account.VerificationExpiresAt)

	f.repo.AssertExpectations(t)
}

func TestVerifyRejections(t *testing.T) {
	tests := []struct {
		name    string
		account *accounts.Account
		code    string
		wantErr error
	}{
		{
			name:    "unknown email",
			account: nil,
			code:    "482910",
			wantErr: accounts.ErrInvalidVerification,
		},
		{
			name: "already verified",
			account: &accounts.Account{
				ID:       uuid.New(),
				Email:    "peda@example.com",
				Verified: true,
			},
			code:    "482910",
			wantErr: accounts.ErrAlreadyVerified,
		},
		{
			name: "no pending code",
			account: &accounts.Account{
				ID:    uuid.New(),
				Email: "peda@example.com",
			},
			code:    "482910",
			wantErr: accounts.ErrInvalidVerification,
		},
		{
			name: "wrong code",
			account: (&accounts.Account{
				ID:    uuid.New(),
				Email: "peda@example.com",
			}).SetVerification("482910", testNow.Add(5*time.Minute)),
			code:    "482911",
			wantErr: accounts.ErrInvalidVerification,
		},
		{
			name: "code comparison keeps whitespace",
			account: (&accounts.Account{
				ID:    uuid.New(),
				Email: "peda@example.com",
			}).SetVerification("482910", testNow.Add(5*time.Minute)),
			code:    " 482910",
			wantErr: accounts.ErrInvalidVerification,
		},
		{
			name: "expired code beats matching code",
			account: (&accounts.Account{
				ID:    uuid.New(),
				Email: "peda@example.com",
			}).SetVerification("482910", testNow.Add(-time.Second)),
			code:    "482910",
			wantErr: accounts.ErrVerificationExpired,
		},
		{
			name: "expiry equal to now is expired",
			account: (&accounts.Account{
				ID:    uuid.New(),
				Email: "peda@example.com",
			}).SetVerification("482910", testNow),
			code:    "482910",
			wantErr: accounts.ErrVerificationExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLifecycleFixture()

			if tt.account == nil {
				f.repo.On("GetByEmailTx", mock.Anything, mock.Anything, "peda@example.com").
					Return(nil, recordNotFound()).Once()
			} else {
				f.repo.On("GetByEmailTx", mock.Anything, mock.Anything, "peda@example.com").
					Return(tt.account, nil).Once()
			}

			err := f.svc.Verify(context.Background(), "peda@example.com", tt.code)
			assert.ErrorIs(t, err, tt.wantErr)

			f.repo.AssertNotCalled(t, "SaveTx", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestResendVerificationUnknownEmail(t *testing.T) {
	f := newLifecycleFixture()

	f.repo.On("GetByEmailTx", mock.Anything, mock.Anything, "nobody@example.com").
		Return(nil, recordNotFound()).Once()

	result, err := f.svc.ResendVerification(context.Background(), "nobody@example.com")
	require.NoError(t, err)

	// unknown and unverified emails share one message
	assert.Equal(t, accounts.MsgResendGeneric, result.Message)
	f.notifier.AssertNotCalled(t, "SendVerificationCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResendVerificationAlreadyVerified(t *testing.T) {
	f := newLifecycleFixture()

	account := &accounts.Account{
		ID:       uuid.New(),
		Email:    "peda@example.com",
		Verified: true,
	}

	f.repo.On("GetByEmailTx", mock.Anything, mock.Anything, "peda@example.com").
		Return(account, nil).Once()

	result, err := f.svc.ResendVerification(context.Background(), "peda@example.com")
	require.NoError(t, err)

	assert.Equal(t, accounts.MsgAlreadyVerified, result.Message)
	f.repo.AssertNotCalled(t, "SaveTx", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "SendVerificationCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResendVerificationRotatesCode(t *testing.T) {
	f := newLifecycleFixture()

	account := (&accounts.Account{
		ID:    uuid.New(),
		Name:  "Peda",
		Email: "peda@example.com",
	}).SetVerification("111111", testNow.Add(-time.Minute))

	f.repo.On("GetByEmailTx", mock.Anything, mock.Anything, "peda@example.com").
		Return(account, nil).Once()
	f.repo.On("SaveTx", mock.Anything, mock.Anything, account).
		Return(nil, nil).Once()

	var sentCode string
	f.notifier.On("SendVerificationCode", mock.Anything, "peda@example.com", "Peda", mock.AnythingOfType("string")).
		Return(nil).
		Run(func(args mock.Arguments) {
			sentCode = args.String(3)
		}).Once()

	result, err := f.svc.ResendVerification(context.Background(), "peda@example.com")
	require.NoError(t, err)

	assert.Equal(t, accounts.MsgResendGeneric, result.Message)
	require.NotNil(t, account.VerificationCode)
	assert.NotEqual(t, "111111", *account.VerificationCode)
	assert.Equal(t, *account.VerificationCode, sentCode)
	assert.Equal(t, testNow.Add(accounts.VerificationCodeTTL), *account.VerificationExpiresAt)

	f.repo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestLoginIssuesSessionToken(t *testing.T) {
	f := newLifecycleFixture()

	account := (&accounts.Account{
		ID:       uuid.New(),
		Name:     "Peda",
		Email:    "peda@example.com",
		Role:     accounts.RoleStudent,
		Verified: true,
	}).SetPassword(testPasswordHash(t))

	f.repo.On("GetByEmail", mock.Anything, "peda@example.com").
		Return(account, nil).Once()
	f.tokens.On("Generate", mock.Anything).Return("session-token", nil).Once()

	result, err := f.svc.Login(context.Background(), "peda@example.com", "correct-horse-battery")
	require.NoError(t, err)

	assert.Equal(t, "session-token", result.Token)
	assert.Equal(t, account.ID.String(), result.User.ID)
	assert.Equal(t, "peda@example.com", result.User.Email)
	assert.Equal(t, accounts.RoleStudent, result.User.Role)
	assert.True(t, result.User.Verified)
}

func TestLoginUnknownEmailAndWrongPasswordLookIdentical(t *testing.T) {
	f := newLifecycleFixture()

	account := (&accounts.Account{
		ID:       uuid.New(),
		Email:    "peda@example.com",
		Verified: true,
	}).SetPassword(testPasswordHash(t))

	f.repo.On("GetByEmail", mock.Anything, "nobody@example.com").
		Return(nil, recordNotFound()).Once()
	f.repo.On("GetByEmail", mock.Anything, "peda@example.com").
		Return(account, nil).Once()

	_, unknownErr := f.svc.Login(context.Background(), "nobody@example.com", "correct-horse-battery")
	_, wrongErr := f.svc.Login(context.Background(), "peda@example.com", "not-the-password")

	assert.ErrorIs(t, unknownErr, accounts.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, accounts.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLoginWithoutCredential(t *testing.T) {
	f := newLifecycleFixture()

	// created through an external provider, no password hash at all
	account := &accounts.Account{
		ID:       uuid.New(),
		Email:    "peda@example.com",
		Verified: true,
	}

	f.repo.On("GetByEmail", mock.Anything, "peda@example.com").
		Return(account, nil).Once()

	_, err := f.svc.Login(context.Background(), "peda@example.com", "anything")
	assert.ErrorIs(t, err, accounts.ErrNoCredential)
	f.tokens.AssertNotCalled(t, "Generate", mock.Anything)
}

func TestLoginUnverifiedAccount(t *testing.T) {
	f := newLifecycleFixture()

	account := (&accounts.Account{
		ID:    uuid.New(),
		Email: "peda@example.com",
	}).SetPassword(testPasswordHash(t))

	f.repo.On("GetByEmail", mock.Anything, "peda@example.com").
		Return(account, nil).Twice()

	// unverified surfaces only once the password has been confirmed
	_, err := f.svc.Login(context.Background(), "peda@example.com", "correct-horse-battery")
	assert.ErrorIs(t, err, accounts.ErrNotVerified)

	_, err = f.svc.Login(context.Background(), "peda@example.com", "not-the-password")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	f.tokens.AssertNotCalled(t, "Generate", mock.Anything)
}

func TestLoginRecordsActivity(t *testing.T) {
	f := newLifecycleFixture()

	var events []accounts.ActivityEvent
	f.svc.WithActivitySink(accounts.ActivitySinkFunc(func(_ context.Context, event accounts.ActivityEvent) error {
		events = append(events, event)
		return nil
	}))

	account := (&accounts.Account{
		ID:       uuid.New(),
		Email:    "peda@example.com",
		Verified: true,
	}).SetPassword(testPasswordHash(t))

	f.repo.On("GetByEmail", mock.Anything, "peda@example.com").
		Return(account, nil).Twice()
	f.tokens.On("Generate", mock.Anything).Return("session-token", nil).Once()

	_, err := f.svc.Login(context.Background(), "peda@example.com", "not-the-password")
	assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "peda@example.com", "correct-horse-battery")
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, accounts.ActivityEventLoginFailure, events[0].EventType)
	assert.Equal(t, accounts.TextCodeInvalidCredential, events[0].Metadata["reason"])
	assert.Equal(t, accounts.ActivityEventLoginSuccess, events[1].EventType)
	assert.Equal(t, account.ID.String(), events[1].AccountID)
	assert.Equal(t, testNow, events[1].OccurredAt)
}

func TestActivitySinkFailureDoesNotFailLogin(t *testing.T) {
	f := newLifecycleFixture()

	f.svc.WithActivitySink(accounts.ActivitySinkFunc(func(context.Context, accounts.ActivityEvent) error {
		return assert.AnError
	}))

	account := (&accounts.Account{
		ID:       uuid.New(),
		Email:    "peda@example.com",
		Verified: true,
	}).SetPassword(testPasswordHash(t))

	f.repo.On("GetByEmail", mock.Anything, "peda@example.com").
		Return(account, nil).Once()
	f.tokens.On("Generate", mock.Anything).Return("session-token", nil).Once()

	result, err := f.svc.Login(context.Background(), "peda@example.com", "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, "session-token", result.Token)
}

func TestLogoutIsStateless(t *testing.T) {
	f := newLifecycleFixture()
	assert.Equal(t, accounts.MsgLoggedOut, f.svc.Logout())
}

func TestCurrentUserLoadsAccount(t *testing.T) {
	f := newLifecycleFixture()

	account := &accounts.Account{
		ID:       uuid.New(),
		Name:     "Peda",
		Email:    "peda@example.com",
		Role:     accounts.RoleStudent,
		Verified: true,
	}

	f.tokens.On("Validate", "session-token").
		Return(stubClaims{uid: account.ID.String(), role: string(accounts.RoleStudent)}, nil).Once()
	f.repo.On("GetByID", mock.Anything, account.ID.String(), mock.Anything).
		Return(account, nil).Once()

	info, err := f.svc.CurrentUser(context.Background(), "session-token")
	require.NoError(t, err)

	assert.Equal(t, account.ID.String(), info.ID)
	assert.Equal(t, "peda@example.com", info.Email)
	assert.Equal(t, accounts.RoleStudent, info.Role)
}

func TestCurrentUserInvalidToken(t *testing.T) {
	f := newLifecycleFixture()

	f.tokens.On("Validate", "garbage").
		Return(nil, accounts.ErrTokenMalformed).Once()

	_, err := f.svc.CurrentUser(context.Background(), "garbage")
	assert.ErrorIs(t, err, accounts.ErrUnauthorized)
	f.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestCurrentUserDeletedAccount(t *testing.T) {
	f := newLifecycleFixture()

	f.tokens.On("Validate", "session-token").
		Return(stubClaims{uid: "gone-id"}, nil).Once()
	f.repo.On("GetByID", mock.Anything, "gone-id", mock.Anything).
		Return(nil, recordNotFound()).Once()

	_, err := f.svc.CurrentUser(context.Background(), "session-token")
	assert.ErrorIs(t, err, accounts.ErrAccountNotFound)
}
