package accounts

import (
	"context"

	"github.com/goliatone/go-router"

	"github.com/coursekit/go-accounts/middleware/jwtware"
)

// jwtValidatorAdapter bridges the package-local TokenValidator to the
// middleware's interface of the same shape.
type jwtValidatorAdapter struct {
	tokens TokenValidator
}

func (a jwtValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ContextEnricherAdapter stores validated claims in the standard context so
// downstream handlers can use GetClaims without touching router locals.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}
	return WithClaimsContext(c, authClaims)
}

// ProtectedRoute builds a session-guard middleware from the token
// configuration and a validator. Requests without a valid session token
// never reach the wrapped handler.
func ProtectedRoute(cfg Config, tokens TokenValidator, errorHandler router.ErrorHandler) router.MiddlewareFunc {
	jwtCfg := jwtware.Config{
		ErrorHandler:    errorHandler,
		TokenValidator:  jwtValidatorAdapter{tokens},
		ContextEnricher: ContextEnricherAdapter,
	}

	if cfg != nil {
		jwtCfg.ContextKey = cfg.GetContextKey()
		jwtCfg.TokenLookup = cfg.GetTokenLookup()
		jwtCfg.AuthScheme = cfg.GetAuthScheme()
	}

	return jwtware.New(jwtCfg)
}
