// Package mailer provides authguard.Mailer implementations.
//
// Resend delivers through the Resend API. Log writes the message, link
// included, to a slog.Logger and is meant for local development only.
package mailer
