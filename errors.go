package accounts

import "github.com/goliatone/go-errors"

// Text codes attached to business errors so callers can branch without
// matching on message strings.
const (
	TextCodeAlreadyRegistered    = "already_registered"
	TextCodeAlreadyVerified      = "already_verified"
	TextCodeInvalidCredential    = "invalid_credential"
	TextCodeVerificationExpired  = "verification_expired"
	TextCodeInvalidResetToken    = "invalid_or_expired_token"
	TextCodeNotVerified          = "account_not_verified"
	TextCodeNoCredential         = "no_credential"
	TextCodeUnauthorized         = "unauthorized"
	TextCodeAccountNotFound      = "account_not_found"
	TextCodeTokenExpired         = "token_expired"
	TextCodeTokenMalformed       = "token_malformed"
	TextCodeNotificationFailed   = "notification_failed"
)

// ErrAlreadyRegistered is returned when registering an email that belongs
// to a verified account. The message never reveals whether the supplied
// password matched.
var ErrAlreadyRegistered = errors.New("an account with this email already exists", errors.CategoryValidation).
	WithTextCode(TextCodeAlreadyRegistered).
	WithCode(errors.CodeBadRequest)

// ErrAlreadyVerified is returned when verifying an account that is already
// verified.
var ErrAlreadyVerified = errors.New("account is already verified", errors.CategoryValidation).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(errors.CodeBadRequest)

// ErrInvalidVerification covers both "no such email" and "wrong code" so
// the endpoint cannot be used to enumerate registered addresses.
var ErrInvalidVerification = errors.New("invalid email or verification code", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidCredential).
	WithCode(errors.CodeBadRequest)

// ErrVerificationExpired is returned when the stored code's expiry is not
// strictly in the future, even if the submitted code would have matched.
var ErrVerificationExpired = errors.New("verification code has expired", errors.CategoryValidation).
	WithTextCode(TextCodeVerificationExpired).
	WithCode(errors.CodeBadRequest)

// ErrInvalidCredentials covers both "no such email" and "wrong password"
// with one merged response.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredential).
	WithCode(errors.CodeUnauthorized)

// ErrNoCredential is returned when password login hits an account created
// through an external provider only. The HTTP layer maps it to the same
// response body as ErrInvalidCredentials.
var ErrNoCredential = errors.New("account has no password credential", errors.CategoryAuth).
	WithTextCode(TextCodeNoCredential).
	WithCode(errors.CodeUnauthorized)

// ErrNotVerified is only returned after the password has been confirmed
// correct, so it cannot be used to probe whether an email is registered.
var ErrNotVerified = errors.New("account not verified, check your email for the verification code", errors.CategoryAuth).
	WithTextCode(TextCodeNotVerified).
	WithCode(errors.CodeForbidden)

// ErrInvalidResetToken conflates "token never existed" and "token expired";
// both are resolved through the same store predicate.
var ErrInvalidResetToken = errors.New("invalid or expired password reset token", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidResetToken).
	WithCode(errors.CodeBadRequest)

// ErrUnauthorized is returned for current-user lookups with a missing or
// invalid session token.
var ErrUnauthorized = errors.New("missing or invalid session token", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrAccountNotFound is returned when a validated session token points at
// an account that no longer exists.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrTokenExpired is returned when a session token's expiry has passed.
var ErrTokenExpired = errors.New("session token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for session tokens that fail to parse or
// carry a bad signature.
var ErrTokenMalformed = errors.New("session token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the codec-level mismatch error; the
// lifecycle maps it to ErrInvalidCredentials before it reaches callers.
var ErrMismatchedHashAndPassword = errors.New("hashed password does not match", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredential).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString rejects empty input to the credential codec.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// IsTokenExpiredError reports whether err is a session token expiry error.
func IsTokenExpiredError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeTokenExpired
}

// IsMalformedError reports whether err is a session token parse or
// signature error.
func IsMalformedError(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeTokenMalformed
}
