package utils

// Stable reasons carried in error responses so clients can branch on them.
const (
	ReasonInvalidCode      = "invalid-code"
	ReasonCodeExpired      = "code-expired"
	ReasonTooManyRequests  = "too-many-requests"
	ReasonQuotaExceeded    = "quota-exceeded"
	ReasonEmailInUse       = "email-in-use"
	ReasonPhoneInUse       = "phone-in-use"
	ReasonWrongPassword    = "wrong-password"
	ReasonUserBlocked      = "user-blocked"
	ReasonCaptchaInvalid   = "captcha-invalid"
	ReasonPhoneUnverified  = "phone-unverified"
	ReasonPasswordMismatch = "password-mismatch"
)

const msgFallback = "Operation failed, please try again."

var messages = map[string]string{
	ReasonInvalidCode:      "The verification code is incorrect.",
	ReasonCodeExpired:      "The verification code has expired. Please request a new one.",
	ReasonTooManyRequests:  "Too many requests. Please wait a moment and try again.",
	ReasonQuotaExceeded:    "The SMS quota has been exceeded. Please try again tomorrow.",
	ReasonEmailInUse:       "This email address is already registered.",
	ReasonPhoneInUse:       "This phone number is already registered.",
	ReasonWrongPassword:    "Wrong email or password.",
	ReasonUserBlocked:      "This account has been blocked. Please contact an administrator.",
	ReasonCaptchaInvalid:   "The captcha answer is incorrect.",
	ReasonPhoneUnverified:  "Please verify your phone number first.",
	ReasonPasswordMismatch: "The passwords do not match.",
}

// Message returns the user-facing text for reason.
func Message(reason string) string {
	if m, ok := messages[reason]; ok {
		return m
	}
	return msgFallback
}
