package dispatch

import "errors"

var (
	// ErrTypeNotInCatalog is returned when an email type is missing from the catalog.
	ErrTypeNotInCatalog = errors.New("email type not in catalog")

	// ErrTypeDisabled is returned when an email type exists in the catalog but is disabled.
	ErrTypeDisabled = errors.New("email type is disabled in catalog")

	// ErrInvalidRecipient is returned when the target address is not plausible.
	ErrInvalidRecipient = errors.New("recipient is not a valid email address")

	// ErrEventNotFound is returned when no matching email event exists.
	ErrEventNotFound = errors.New("email event not found")

	// ErrProfileNotFound is returned when the target user's profile cannot be resolved.
	ErrProfileNotFound = errors.New("user profile not found")

	// ErrScheduleNotFound is returned when a scheduled email row does not exist.
	ErrScheduleNotFound = errors.New("scheduled email not found")

	// ErrInvalidStatusTransition is returned on an illegal scheduled email
	// status change, e.g. marking an unclaimed row as sent.
	ErrInvalidStatusTransition = errors.New("invalid scheduled email status transition")

	// ErrReminderWindowPassed is returned when a meeting reminder is requested
	// for a meeting that has already started.
	ErrReminderWindowPassed = errors.New("meeting has already started, reminder not scheduled")

	// ErrRepositoryNil is returned when the orchestrator is constructed with a
	// missing dependency.
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrSenderNil is returned when the orchestrator is constructed without a
	// delivery client.
	ErrSenderNil = errors.New("sender cannot be nil")
)
