package accounts_test

import (
	"context"
	"database/sql"
	"time"

	accounts "github.com/coursekit/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockAccounts implements accounts.Accounts for the methods the lifecycle
// exercises. The embedded repository interface covers the rest.
type MockAccounts struct {
	repository.Repository[*accounts.Account]
	mock.Mock
}

func (m *MockAccounts) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*accounts.Account, error) {
	args := m.Called(ctx, id, criteria)
	record, _ := args.Get(0).(*accounts.Account)
	return record, args.Error(1)
}

func (m *MockAccounts) GetByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	args := m.Called(ctx, email)
	record, _ := args.Get(0).(*accounts.Account)
	return record, args.Error(1)
}

func (m *MockAccounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*accounts.Account, error) {
	args := m.Called(ctx, tx, email)
	record, _ := args.Get(0).(*accounts.Account)
	return record, args.Error(1)
}

func (m *MockAccounts) GetByExternalIdentity(ctx context.Context, provider, providerUserID string) (*accounts.Account, error) {
	args := m.Called(ctx, provider, providerUserID)
	record, _ := args.Get(0).(*accounts.Account)
	return record, args.Error(1)
}

func (m *MockAccounts) GetByExternalIdentityTx(ctx context.Context, tx bun.IDB, provider, providerUserID string) (*accounts.Account, error) {
	args := m.Called(ctx, tx, provider, providerUserID)
	record, _ := args.Get(0).(*accounts.Account)
	return record, args.Error(1)
}

func (m *MockAccounts) GetByResetToken(ctx context.Context, token string, now time.Time) (*accounts.Account, error) {
	args := m.Called(ctx, token, now)
	record, _ := args.Get(0).(*accounts.Account)
	return record, args.Error(1)
}

func (m *MockAccounts) GetByResetTokenTx(ctx context.Context, tx bun.IDB, token string, now time.Time) (*accounts.Account, error) {
	args := m.Called(ctx, tx, token, now)
	record, _ := args.Get(0).(*accounts.Account)
	return record, args.Error(1)
}

func (m *MockAccounts) Create(ctx context.Context, record *accounts.Account, criteria ...repository.InsertCriteria) (*accounts.Account, error) {
	args := m.Called(ctx, record, criteria)
	out, _ := args.Get(0).(*accounts.Account)
	return out, args.Error(1)
}

// CreateTx echoes the input record when no explicit return is configured,
// matching the real store which hands back the persisted record.
func (m *MockAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *accounts.Account, criteria ...repository.InsertCriteria) (*accounts.Account, error) {
	args := m.Called(ctx, tx, record, criteria)
	out, _ := args.Get(0).(*accounts.Account)
	if out == nil && args.Error(1) == nil {
		out = record
	}
	return out, args.Error(1)
}

func (m *MockAccounts) Save(ctx context.Context, record *accounts.Account) (*accounts.Account, error) {
	args := m.Called(ctx, record)
	out, _ := args.Get(0).(*accounts.Account)
	return out, args.Error(1)
}

func (m *MockAccounts) SaveTx(ctx context.Context, tx bun.IDB, record *accounts.Account) (*accounts.Account, error) {
	args := m.Called(ctx, tx, record)
	out, _ := args.Get(0).(*accounts.Account)
	if out == nil && args.Error(1) == nil {
		out = record
	}
	return out, args.Error(1)
}

// MockRepositoryManager runs transaction closures inline so errors from
// inside the closure propagate exactly as they would with a real database.
type MockRepositoryManager struct {
	mock.Mock
	accounts accounts.Accounts
}

func NewMockRepositoryManager(repo accounts.Accounts) *MockRepositoryManager {
	return &MockRepositoryManager{accounts: repo}
}

func (m *MockRepositoryManager) Validate() error {
	return nil
}

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Accounts() accounts.Accounts {
	return m.accounts
}

// MockNotifier implements accounts.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendVerificationCode(ctx context.Context, email, name, code string) error {
	args := m.Called(ctx, email, name, code)
	return args.Error(0)
}

func (m *MockNotifier) SendPasswordReset(ctx context.Context, email, name, token string) error {
	args := m.Called(ctx, email, name, token)
	return args.Error(0)
}

// MockTokenService implements accounts.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Generate(identity accounts.Identity) (string, error) {
	args := m.Called(identity)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Validate(tokenString string) (accounts.AuthClaims, error) {
	args := m.Called(tokenString)
	claims, _ := args.Get(0).(accounts.AuthClaims)
	return claims, args.Error(1)
}
