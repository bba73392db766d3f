package obs

import (
	"errors"
	"fmt"
)

// portal response text when the solved captcha is wrong. any other text
// in the error panel means the login itself failed.
const captchaMismatchText = "Güvenlik kodu hatalı girildi !"

// ErrCaptchaRejected is returned by a single login attempt when the
// portal rejects the solved captcha text. Login retries it internally,
// callers only see it wrapped in a LoginError once retries run out.
var ErrCaptchaRejected = errors.New("portal rejected the captcha solution")

// ErrSessionExpired is detected via the Expires: -1 response header on
// the grades page. recoverable by logging in again.
var ErrSessionExpired = errors.New("portal session expired")

// LoginError is fatal to the current session: credentials and session
// artifacts must be cleared and polling stopped.
type LoginError struct {
	PortalMessage string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed: %s", e.PortalMessage)
}
