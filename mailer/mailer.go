package mailer

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config controls message content. Links take the form
// <AppURL><Path>?email=<email>&token=<token>.
type Config struct {
	From    string
	AppURL  string
	AppName string

	VerifyPath string
	ResetPath  string

	// Lifetimes are only quoted in the message text.
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

func (c Config) withDefaults() Config {
	if c.AppName == "" {
		c.AppName = "authguard"
	}
	if c.VerifyPath == "" {
		c.VerifyPath = "/auth/verify-email"
	}
	if c.ResetPath == "" {
		c.ResetPath = "/auth/reset-password"
	}
	if c.VerificationTTL <= 0 {
		c.VerificationTTL = 24 * time.Hour
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = time.Hour
	}
	c.AppURL = strings.TrimRight(c.AppURL, "/")
	return c
}

func (c Config) link(path, email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return c.AppURL + path + "?" + q.Encode()
}

type message struct {
	kind    string
	to      string
	subject string
	body    string
	link    string
}

func (c Config) verificationMessage(email, token string) message {
	link := c.link(c.VerifyPath, email, token)
	subject, body := verificationEmailTemplate(link, c.AppName, c.VerificationTTL)
	return message{kind: "email_verification", to: email, subject: subject, body: body, link: link}
}

func (c Config) resetMessage(email, token string) message {
	link := c.link(c.ResetPath, email, token)
	subject, body := resetPasswordEmailTemplate(link, c.AppName, c.ResetTTL)
	return message{kind: "password_reset", to: email, subject: subject, body: body, link: link}
}

func verificationEmailTemplate(verifyURL, appName string, ttl time.Duration) (string, string) {
	subject := fmt.Sprintf("Verify your email for %s", appName)
	body := fmt.Sprintf(`Please confirm your email address by opening this link:
%s

This link expires in %s and can only be used once.

If you didn't create an account, you can ignore this email.

Best,
The %s Team`, verifyURL, humanDuration(ttl), appName)

	return subject, body
}

func resetPasswordEmailTemplate(resetURL, appName string, ttl time.Duration) (string, string) {
	subject := fmt.Sprintf("Reset your password for %s", appName)
	body := fmt.Sprintf(`You requested to reset your password. Choose a new one with this link:
%s

This link expires in %s and can only be used once. Requesting another link cancels this one.

If you didn't request this, you can safely ignore this email. Your password won't be changed.

Best,
The %s Team`, resetURL, humanDuration(ttl), appName)

	return subject, body
}

func humanDuration(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return plural(int(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
