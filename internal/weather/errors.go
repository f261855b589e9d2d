package weather

import "errors"

var (
	// ErrNotFound is returned when no reading exists for the requested id.
	ErrNotFound = errors.New("weather reading not found")

	// ErrValidation marks a malformed create/update payload or query.
	ErrValidation = errors.New("validation error")

	// ErrSourceUnavailable is returned when the upstream provider fetch fails.
	ErrSourceUnavailable = errors.New("weather source unavailable")

	// ErrUnauthorized covers missing or invalid tokens and bad credentials.
	ErrUnauthorized = errors.New("unauthorized")
)
