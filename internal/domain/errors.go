package domain

import "errors"

var (
	// ErrEmailInUse signals a registration attempt with an already-taken email.
	ErrEmailInUse = errors.New("auth: email already in use")
	// ErrInvalidCredentials covers both unknown email and password mismatch so
	// responses never reveal which one failed.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrIncorrectOldPassword signals a failed re-verification during password change.
	ErrIncorrectOldPassword = errors.New("auth: incorrect old password")
	// ErrMissingProviderEmail signals OAuth2 claims without an email attribute.
	ErrMissingProviderEmail = errors.New("auth: provider claims missing email")

	// ErrMalformedToken indicates a token that does not parse as a JWT.
	ErrMalformedToken = errors.New("token: malformed")
	// ErrExpiredToken indicates a token past its expiry.
	ErrExpiredToken = errors.New("token: expired")
	// ErrUnsupportedToken indicates a token signed with an unexpected algorithm.
	ErrUnsupportedToken = errors.New("token: unsupported algorithm")
	// ErrEmptyTokenClaims indicates a token with no usable claims or an empty string.
	ErrEmptyTokenClaims = errors.New("token: empty claims")
	// ErrRevokedToken indicates a token present on the revocation list.
	ErrRevokedToken = errors.New("token: revoked")

	// ErrPrincipalNotFound signals a valid token whose subject no longer resolves
	// to a stored user, e.g. the account was deleted after issuance.
	ErrPrincipalNotFound = errors.New("auth: principal not found")
	// ErrUnauthorized signals a request with no authenticated principal.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden signals an authenticated principal without the required role.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrUserNotFound is the store-level absence value.
	ErrUserNotFound = errors.New("store: user not found")
	// ErrAdminDeletion signals an attempt to delete an admin account.
	ErrAdminDeletion = errors.New("auth: cannot delete an admin user")
)
