package contacts

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes give every failure kind a stable identifier that survives
// wrapping. The HTTP layer keys its status mapping off these, so each code
// must map to exactly one outward status.
const (
	TextCodeUnknownEmail      = "UNKNOWN_EMAIL"
	TextCodeEmailNotConfirmed = "EMAIL_NOT_CONFIRMED"
	TextCodeInvalidPassword   = "INVALID_PASSWORD"
	TextCodeInvalidSignature  = "INVALID_SIGNATURE"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeWrongScope        = "WRONG_SCOPE"
	TextCodeRevokedToken      = "REVOKED_TOKEN"
	TextCodeAccountExists     = "ACCOUNT_EXISTS"
	TextCodeVerification      = "VERIFICATION_ERROR"
	TextCodeTimeout           = "STORE_TIMEOUT"
)

// ErrUnknownEmail is returned when no account is registered for an email.
var ErrUnknownEmail = goerrors.New("no account registered for email", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUnknownEmail)

// ErrEmailNotConfirmed blocks login for accounts that never confirmed. It is
// checked before the password so unconfirmed accounts learn nothing about
// credential correctness.
var ErrEmailNotConfirmed = goerrors.New("email address not confirmed", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotConfirmed)

// ErrInvalidPassword is the credential mismatch failure.
var ErrInvalidPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidPassword)

// ErrInvalidSignature covers tampered or structurally broken tokens.
var ErrInvalidSignature = goerrors.New("token signature could not be verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature)

// ErrTokenExpired is returned for tokens past their expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrWrongScope is returned when a valid token is presented to an operation
// that expects a different scope.
var ErrWrongScope = goerrors.New("invalid scope for token", goerrors.CategoryAuth).
	WithTextCode(TextCodeWrongScope)

// ErrRevokedToken is returned when a refresh token no longer matches the
// stored value, which means it was rotated out by a newer login or refresh.
var ErrRevokedToken = goerrors.New("refresh token has been revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeRevokedToken)

// ErrAccountExists is the signup conflict failure.
var ErrAccountExists = goerrors.New("account already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeAccountExists)

// ErrVerification is returned when a confirmation token references an
// unknown account.
var ErrVerification = goerrors.New("verification error", goerrors.CategoryBadInput).
	WithTextCode(TextCodeVerification)

// ErrStoreTimeout reports that the durable store or mail dispatch could not
// answer within the caller's deadline. Distinct from the auth failures so a
// caller can tell "not authorized" from "could not determine".
var ErrStoreTimeout = goerrors.New("store did not answer within deadline", goerrors.CategoryOperation).
	WithTextCode(TextCodeTimeout)

// HasTextCode reports whether err carries the given text code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}
