package authguard

import "errors"

var (
	// ErrInvalidEmail is returned when an email normalizes to the empty string.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidPurpose is returned for a token purpose other than PurposeVerify or PurposeReset.
	ErrInvalidPurpose = errors.New("invalid token purpose")
	// ErrInvalidAction classifies audit events for an AuthAction without a
	// configured policy. Such checks are denied, not failed.
	ErrInvalidAction = errors.New("invalid auth action")
	// ErrUserNotFound is returned by a UserProvider for an unknown email.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenNotFound is returned by a TokenStore when no record matches.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenConflict is returned by a TokenStore when a concurrent writer kept
	// winning the (purpose, email) slot.
	ErrTokenConflict = errors.New("token write conflict")
	// ErrTokenStoreUnavailable wraps every storage failure during token
	// creation or consumption.
	ErrTokenStoreUnavailable = errors.New("token store unavailable")
	// ErrTokenGeneration is returned when the system random source fails.
	ErrTokenGeneration = errors.New("token generation failed")
	// ErrUserProviderUnavailable wraps UserProvider failures other than ErrUserNotFound.
	ErrUserProviderUnavailable = errors.New("user provider unavailable")
	// ErrMailUnavailable wraps Mailer failures.
	ErrMailUnavailable = errors.New("mail delivery unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
