package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// ExternalProfile is what an identity provider callback delivers: a stable
// provider user id plus the externally verified email.
type ExternalProfile struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
}

// ExternalLoginResult reports how the profile was resolved, for audit
// logging and redirect selection.
type ExternalLoginResult struct {
	Token     string
	User      UserInfo
	IsNewUser bool
	Linked    bool
}

// ExternalLogin resolves an external profile to a local account and issues
// a session. Resolution order: existing link by (provider, provider user
// id); then link-by-email, which attaches the external identity and forces
// verified since the provider already proved control of the address; then
// signup with a verified account that has no password credential.
func (s *Lifecycle) ExternalLogin(ctx context.Context, profile ExternalProfile) (*ExternalLoginResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if profile.Provider == "" || profile.ProviderUserID == "" {
		return nil, goerrors.New("external profile is missing provider identity", goerrors.CategoryBadInput)
	}

	result := &ExternalLoginResult{}
	var account *Account

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.repo.Accounts().GetByExternalIdentityTx(ctx, tx, profile.Provider, profile.ProviderUserID)
		if err == nil {
			// returning user, no mutation
			account = existing
			return nil
		}
		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up linked account")
		}

		byEmail, err := s.repo.Accounts().GetByEmailTx(ctx, tx, profile.Email)
		if err == nil {
			byEmail.LinkExternalIdentity(profile.Provider, profile.ProviderUserID)
			if account, err = s.repo.Accounts().SaveTx(ctx, tx, byEmail); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to link external identity")
			}
			result.Linked = true
			return nil
		}
		if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up account")
		}

		// brand-new account: verified, no password credential at all
		record := &Account{
			Name:     profile.Name,
			Email:    profile.Email,
			Role:     RoleUser,
			Verified: true,
		}
		record.LinkExternalIdentity(profile.Provider, profile.ProviderUserID)
		if id, err := hashid.NewUUID(profile.Email); err == nil {
			record.ID = id
		}

		if account, err = s.repo.Accounts().CreateTx(ctx, tx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		result.IsNewUser = true
		return nil
	})

	if err != nil {
		return nil, asRichError(err, "external login failed")
	}

	token, err := s.tokens.Generate(accountIdentity{account})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue session token")
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventExternalLogin,
		AccountID: account.ID.String(),
		Email:     account.Email,
		Metadata: map[string]any{
			"provider": profile.Provider,
			"new_user": result.IsNewUser,
			"linked":   result.Linked,
		},
	})

	result.Token = token
	result.User = account.Info()
	return result, nil
}
