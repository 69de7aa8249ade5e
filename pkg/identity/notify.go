package identity

import "fmt"

// Notifier is the outbound email capability consumed by the engine.
type Notifier interface {
	Send(to, subject, htmlBody string) error
}

func resetEmail(baseURL, token string) (subject, body string) {
	subject = "Reset Your Password"
	if baseURL != "" {
		resetURL := fmt.Sprintf("%s/auth/reset-password/confirm?token=%s", baseURL, token)
		body = fmt.Sprintf(`<html><body>
		<h2>Reset Your Password</h2>
		<p>A password reset has been requested for your account.</p>
		<p><a href="%s">Click here to reset your password</a></p>
		<p>Or copy this link to your browser: %s</p>
		<p>This link will expire in 1 hour.</p>
		<p>If you did not request this password reset, please ignore this email.</p>
	</body></html>`, resetURL, resetURL)
		return subject, body
	}
	body = fmt.Sprintf(`<html><body>
		<h2>Reset Your Password</h2>
		<p>A password reset has been requested for your account.</p>
		<p>Your reset code is: <b>%s</b></p>
		<p>This code will expire in 1 hour.</p>
		<p>If you did not request this password reset, please ignore this email.</p>
	</body></html>`, token)
	return subject, body
}

func passwordChangedEmail() (subject, body string) {
	subject = "Your Password Was Changed"
	body = `<html><body>
		<h2>Your Password Was Changed</h2>
		<p>The password for your account was just changed using a reset code.</p>
		<p>If this was not you, request a new password reset immediately.</p>
	</body></html>`
	return subject, body
}
