// Package email provides the delivery client abstraction for outbound
// transactional mail, with a Postmark implementation for production and a
// filesystem-backed DevSender for local development.
//
// The package is built around the Sender interface:
//
//	id, err := sender.Send(ctx, email.SendParams{
//	    SendTo:   "member@example.com",
//	    Subject:  "Welcome!",
//	    BodyHTML: html,
//	    BodyText: text,
//	    Tag:      "welcome",
//	})
//
// Send returns the provider's message id, which the dispatch layer records
// in the email event log for auditing.
//
// All implementations validate parameters before sending and share the
// sentinel errors ErrInvalidConfig, ErrInvalidParams, and
// ErrFailedToSendEmail, checkable with errors.Is.
package email
