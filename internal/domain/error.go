package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnauthorized        = errors.New("not authenticated")
	ErrForbidden           = errors.New("not permitted")
	ErrNotOwner            = errors.New("caller does not own this song")
	ErrNotApproved         = errors.New("account is awaiting teacher approval")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrConfigMissing       = errors.New("provider api key not configured")
	ErrProviderRejected    = errors.New("generation provider rejected the request")
	ErrProviderPollFailed  = errors.New("generation provider status check failed")
	ErrInvalidExecContext  = errors.New("invalid query executor")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrLocked              = errors.New("another operation is in progress")
)
