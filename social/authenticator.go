package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	accounts "github.com/coursekit/go-accounts"
)

// AccountResolver resolves an external profile to a local account and a
// session token. *accounts.Lifecycle satisfies it.
type AccountResolver interface {
	ExternalLogin(ctx context.Context, profile accounts.ExternalProfile) (*accounts.ExternalLoginResult, error)
}

// Authenticator orchestrates the OAuth login flow: redirect out with an
// encrypted state, then on callback exchange the code, fetch the profile,
// and hand it to the account resolver.
type Authenticator struct {
	providers    map[string]SocialProvider
	stateManager StateManager
	resolver     AccountResolver
	config       AuthConfig
}

// AuthConfig configures the authenticator.
type AuthConfig struct {
	DefaultRedirectURL string
	StateEncryptionKey []byte
	StateHMACKey       []byte
	StateTTL           time.Duration
}

// AuthOption configures the authenticator.
type AuthOption func(*Authenticator)

// NewAuthenticator creates an authenticator bound to an account resolver.
func NewAuthenticator(resolver AccountResolver, config AuthConfig, opts ...AuthOption) *Authenticator {
	cfg := config
	if cfg.StateTTL == 0 {
		cfg.StateTTL = 10 * time.Minute
	}

	a := &Authenticator{
		providers: make(map[string]SocialProvider),
		resolver:  resolver,
		config:    cfg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if a.stateManager == nil {
		a.stateManager = NewEncryptedStateManager(
			cfg.StateEncryptionKey,
			cfg.StateHMACKey,
			cfg.StateTTL,
		)
	}

	return a
}

// WithProvider registers a social provider.
func WithProvider(provider SocialProvider) AuthOption {
	return func(a *Authenticator) {
		if provider == nil {
			return
		}
		a.providers[provider.Name()] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) AuthOption {
	return func(a *Authenticator) {
		a.stateManager = sm
	}
}

// AuthRedirect contains the authorization URL for redirecting users.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// AuthResult is the outcome of a completed OAuth login.
type AuthResult struct {
	Token       string
	User        accounts.UserInfo
	IsNewUser   bool
	Linked      bool
	Provider    string
	Profile     *SocialProfile
	RedirectURL string
}

// BeginAuth starts the OAuth flow for a provider.
func (a *Authenticator) BeginAuth(ctx context.Context, providerName, redirectURL string) (*AuthRedirect, error) {
	provider, ok := a.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	if redirectURL == "" {
		redirectURL = a.config.DefaultRedirectURL
	}

	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	codeChallenge := computeCodeChallenge(codeVerifier)

	state := &OAuthState{
		Nonce:        generateNonce(),
		Provider:     providerName,
		CodeVerifier: codeVerifier,
		RedirectURL:  redirectURL,
		IssuedAt:     time.Now().Unix(),
		ExpiresAt:    time.Now().Add(a.config.StateTTL).Unix(),
	}

	stateToken, err := a.stateManager.Encode(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	authURL := provider.AuthCodeURL(stateToken, WithPKCE(codeChallenge, "S256"))

	return &AuthRedirect{
		URL:      authURL,
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// CompleteAuth finishes the OAuth flow after callback.
func (a *Authenticator) CompleteAuth(ctx context.Context, providerName, code, stateToken string) (*AuthResult, error) {
	state, err := a.stateManager.Decode(stateToken)
	if err != nil {
		if errors.Is(err, ErrStateExpired) {
			return nil, ErrStateExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if state.Provider != providerName {
		return nil, fmt.Errorf("%w: provider mismatch", ErrInvalidState)
	}

	provider, ok := a.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, "exchange", err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, providerName, "user_info", err)
	}

	if profile == nil || profile.Email == "" {
		return nil, ErrEmailMissing
	}

	login, err := a.resolver.ExternalLogin(ctx, accounts.ExternalProfile{
		Provider:       providerName,
		ProviderUserID: profile.ProviderUserID,
		Email:          profile.Email,
		Name:           profile.DisplayName(),
	})
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Token:       login.Token,
		User:        login.User,
		IsNewUser:   login.IsNewUser,
		Linked:      login.Linked,
		Provider:    providerName,
		Profile:     profile,
		RedirectURL: state.RedirectURL,
	}, nil
}

// ListProviders returns the names of all registered providers.
func (a *Authenticator) ListProviders() []string {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	return names
}
