package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// Fixed user-facing messages. Enumeration-sensitive operations return the
// same message whether or not the account exists; tests compare these
// byte for byte.
const (
	MsgRegistered      = "registration successful, a verification code has been sent to your email"
	MsgCodeResent      = "a new verification code has been sent to your email"
	MsgVerified        = "account verified successfully"
	MsgAlreadyVerified = "account is already verified, you can log in"
	MsgResendGeneric   = "if an account with this email exists, a verification code has been sent"
	MsgForgotGeneric   = "if an account with this email exists, a password reset link has been sent"
	MsgPasswordReset   = "password has been reset successfully"
	MsgLoggedOut       = "logged out successfully"
)

const opTimeout = 10 * time.Second

// Lifecycle orchestrates the account lifecycle. All collaborators are
// injected; there is no package-level mutable state.
type Lifecycle struct {
	repo     RepositoryManager
	notifier Notifier
	tokens   TokenService
	logger   Logger
	activity ActivitySink
	now      func() time.Time
}

// NewLifecycle creates the lifecycle service with sane defaults.
func NewLifecycle(repo RepositoryManager, notifier Notifier, tokens TokenService) *Lifecycle {
	return &Lifecycle{
		repo:     repo,
		notifier: notifier,
		tokens:   tokens,
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}
}

// WithLogger overrides the logger used by the service.
func (s *Lifecycle) WithLogger(logger Logger) *Lifecycle {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the clock. Every operation reads the clock once and
// uses that instant for all of its expiry comparisons.
func (s *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	if now != nil {
		s.now = now
	}
	return s
}

// WithActivitySink attaches an audit sink for lifecycle events.
func (s *Lifecycle) WithActivitySink(sink ActivitySink) *Lifecycle {
	s.activity = normalizeActivitySink(sink)
	return s
}

func (s *Lifecycle) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record failed", "event", string(event.EventType), "error", err)
	}
}

// RegisterInput carries the pre-validated registration fields. Format and
// strength checks happen in the HTTP layer before this is built.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResult reports whether a new account was created (201) or an
// unverified account had its code rotated (200).
type RegisterResult struct {
	Created bool   `json:"-"`
	Message string `json:"message"`
}

// Register creates an unverified account with a fresh verification code,
// or rotates the code on an existing unverified account. Registering a
// verified email fails with ErrAlreadyRegistered regardless of the
// supplied credentials.
func (s *Lifecycle) Register(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := s.now()
	account := &Account{}
	created := false

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.repo.Accounts().GetByEmailTx(ctx, tx, input.Email)
		if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
		}

		if existing != nil && existing.Verified {
			return ErrAlreadyRegistered
		}

		hash, err := HashPassword(input.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		code, err := NewVerificationCode()
		if err != nil {
			return err
		}

		if existing != nil {
			// idempotent re-registration: latest name, password, and code
			// win, and the verification clock restarts
			existing.Name = input.Name
			existing.SetPassword(hash)
			existing.SetVerification(code, now.Add(VerificationCodeTTL))

			if account, err = s.repo.Accounts().SaveTx(ctx, tx, existing); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
			}
			return nil
		}

		record := &Account{
			Name:     input.Name,
			Email:    input.Email,
			Role:     RoleUser,
			Verified: false,
		}
		record.SetPassword(hash)
		record.SetVerification(code, now.Add(VerificationCodeTTL))
		if id, err := hashid.NewUUID(input.Email); err == nil {
			record.ID = id
		}

		// the unique index on email is the last line of defense when two
		// creates race; the loser surfaces here as a conflict
		if account, err = s.repo.Accounts().CreateTx(ctx, tx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account").
				WithTextCode(TextCodeAlreadyRegistered)
		}

		created = true
		return nil
	})

	if err != nil {
		return nil, asRichError(err, "registration failed")
	}

	if err := s.notifier.SendVerificationCode(ctx, account.Email, account.Name, *account.VerificationCode); err != nil {
		s.logger.Error("Register verification email send failed", "email", account.Email, "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send verification email").
			WithTextCode(TextCodeNotificationFailed)
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventRegistered,
		AccountID: account.ID.String(),
		Email:     account.Email,
		Metadata:  map[string]any{"created": created},
	})

	result := &RegisterResult{Created: created, Message: MsgCodeResent}
	if created {
		result.Message = MsgRegistered
	}
	return result, nil
}

// Verify marks an account verified when the submitted code exactly equals
// the stored one and the stored expiry is strictly in the future. The
// comparison is case and whitespace sensitive; no normalization is applied.
func (s *Lifecycle) Verify(ctx context.Context, email, code string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := s.now()

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := s.repo.Accounts().GetByEmailTx(ctx, tx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidVerification
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
		}

		if account.Verified {
			return ErrAlreadyVerified
		}

		if account.VerificationCode == nil || account.VerificationExpiresAt == nil {
			return ErrInvalidVerification
		}

		// expiry is checked before equality; now == expiry counts as expired
		if !account.VerificationExpiresAt.After(now) {
			return ErrVerificationExpired
		}

		if *account.VerificationCode != code {
			return ErrInvalidVerification
		}

		account.Verified = true
		account.ClearVerification()

		if _, err := s.repo.Accounts().SaveTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
		}
		return nil
	})

	if err == nil {
		s.record(ctx, ActivityEvent{EventType: ActivityEventVerified, Email: email})
	}

	return asRichErrorOrNil(err, "verification failed")
}

// ResendResult carries the fixed response message. Unknown and unverified
// emails share one message; already-verified accounts get a distinct one.
type ResendResult struct {
	Message string `json:"message"`
}

// ResendVerification rotates the code pair for an unverified account and
// emails the new code. For unknown emails it reports the same success
// shape without sending anything.
func (s *Lifecycle) ResendVerification(ctx context.Context, email string) (*ResendResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := s.now()
	var account *Account

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.repo.Accounts().GetByEmailTx(ctx, tx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
		}

		if existing.Verified {
			account = existing
			return nil
		}

		code, err := NewVerificationCode()
		if err != nil {
			return err
		}

		existing.SetVerification(code, now.Add(VerificationCodeTTL))
		if account, err = s.repo.Accounts().SaveTx(ctx, tx, existing); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
		}
		return nil
	})

	if err != nil {
		return nil, asRichError(err, "resend verification failed")
	}

	if account != nil && account.Verified {
		return &ResendResult{Message: MsgAlreadyVerified}, nil
	}

	if account != nil {
		if err := s.notifier.SendVerificationCode(ctx, account.Email, account.Name, *account.VerificationCode); err != nil {
			s.logger.Error("ResendVerification email send failed", "email", account.Email, "error", err)
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send verification email").
				WithTextCode(TextCodeNotificationFailed)
		}
	}

	return &ResendResult{Message: MsgResendGeneric}, nil
}

// LoginResult carries the signed session token and the user projection.
type LoginResult struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// Login verifies the password and issues a session token. "No such email"
// and "wrong password" produce the identical error; the unverified check
// runs only after the password is confirmed correct.
func (s *Lifecycle) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	account, err := s.repo.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	if !account.HasCredential() {
		return nil, ErrNoCredential
	}

	if err := ComparePasswordAndHash(password, *account.PasswordHash); err != nil {
		if err == ErrMismatchedHashAndPassword {
			s.record(ctx, ActivityEvent{
				EventType: ActivityEventLoginFailure,
				AccountID: account.ID.String(),
				Email:     account.Email,
				Metadata:  map[string]any{"reason": TextCodeInvalidCredential},
			})
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password")
	}

	if !account.Verified {
		return nil, ErrNotVerified
	}

	token, err := s.tokens.Generate(accountIdentity{account})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue session token")
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		AccountID: account.ID.String(),
		Email:     account.Email,
	})

	return &LoginResult{Token: token, User: account.Info()}, nil
}

// Logout is stateless: there is no server-side session to invalidate.
// Discarding the token is the caller's responsibility.
func (s *Lifecycle) Logout() string {
	return MsgLoggedOut
}

// CurrentUser validates a session token and loads the account it binds.
func (s *Lifecycle) CurrentUser(ctx context.Context, token string) (*UserInfo, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.logger.Debug("CurrentUser token validation failed", "error", err)
		return nil, ErrUnauthorized
	}

	account, err := s.repo.Accounts().GetByID(ctx, claims.UserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
	}

	info := account.Info()
	return &info, nil
}

// accountIdentity adapts an Account to the Identity interface.
type accountIdentity struct {
	account *Account
}

func (i accountIdentity) ID() string    { return i.account.ID.String() }
func (i accountIdentity) Name() string  { return i.account.Name }
func (i accountIdentity) Email() string { return i.account.Email }
func (i accountIdentity) Role() string  { return string(i.account.Role) }

func asRichError(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

func asRichErrorOrNil(err error, msg string) error {
	if err == nil {
		return nil
	}
	return asRichError(err, msg)
}
