package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ForgotResult carries the fixed response message, identical whether or
// not the email exists.
type ForgotResult struct {
	Message string `json:"message"`
}

// ForgotPassword rotates the reset token pair for an existing account and
// emails the reset link. The response shape is identical for unknown
// emails: a reset request is the most enumeration-sensitive operation.
func (s *Lifecycle) ForgotPassword(ctx context.Context, email string) (*ForgotResult, error) {
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

		token, err := NewResetToken()
		if err != nil {
			return err
		}

		// any unexpired prior token is overwritten; the newest request wins
		existing.SetResetToken(token, now.Add(ResetTokenTTL))
		if account, err = s.repo.Accounts().SaveTx(ctx, tx, existing); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
		}
		return nil
	})

	if err != nil {
		return nil, asRichError(err, "password reset request failed")
	}

	if account != nil {
		if err := s.notifier.SendPasswordReset(ctx, account.Email, account.Name, *account.ResetToken); err != nil {
			s.logger.Error("ForgotPassword reset email send failed", "email", account.Email, "error", err)
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send password reset email").
				WithTextCode(TextCodeNotificationFailed)
		}
	}

	return &ForgotResult{Message: MsgForgotGeneric}, nil
}

// ResetPassword replaces the password hash for the account matching the
// token. The lookup predicate requires expiry strictly greater than now,
// so expired and nonexistent tokens are indistinguishable. Reusing the
// previous password is permitted; no comparison against the old hash runs.
func (s *Lifecycle) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := s.now()

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := s.repo.Accounts().GetByResetTokenTx(ctx, tx, token, now)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidResetToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up reset token")
		}

		hash, err := HashPassword(newPassword)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		// the reset pair is cleared, verification state is untouched
		account.SetPassword(hash)
		account.ClearResetToken()

		if _, err := s.repo.Accounts().SaveTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
		}

		s.record(ctx, ActivityEvent{
			EventType: ActivityEventPasswordReset,
			AccountID: account.ID.String(),
			Email:     account.Email,
		})
		return nil
	})

	return asRichErrorOrNil(err, "password reset failed")
}
