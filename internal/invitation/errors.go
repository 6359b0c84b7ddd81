package invitation

import "errors"

var (
	// ErrInvalidInput wraps every input validation failure.
	ErrInvalidInput = errors.New("invalid invitation input")
	// ErrAlreadyExists is returned when a user already owns the email or username.
	ErrAlreadyExists = errors.New("a user with this email already exists")
	// ErrDuplicatePending is returned when an active invitation already targets the email.
	ErrDuplicatePending = errors.New("an active invitation already exists for this email")
	// ErrInvalidOrExpired is returned for unknown, used or expired tokens.
	ErrInvalidOrExpired = errors.New("invalid or expired invitation")
	// ErrNotFoundOrUsed is returned when resending a missing or consumed invitation.
	ErrNotFoundOrUsed = errors.New("invitation not found or already used")
	// ErrUsernameTaken is a storage-level conflict on the reserved username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrUsernameGenerationExhausted is returned when every suffix for a base name is taken.
	ErrUsernameGenerationExhausted = errors.New("unable to generate a unique username")
	// ErrPasswordTooShort is returned when an accepted password is below the minimum length.
	ErrPasswordTooShort = errors.New("password is too short")
)
