package templates

import "errors"

var (
	// ErrUnknownTemplate is returned when no template is registered for an
	// email type tag.
	ErrUnknownTemplate = errors.New("templates: unknown email type")

	// ErrRenderFailed is returned when template execution fails.
	ErrRenderFailed = errors.New("templates: render failed")
)
