package utils

import (
	"time"

	"github.com/mojocn/base64Captcha"
)

const captchaTTL = 10 * time.Minute

// kvCaptchaStore implements base64Captcha.Store on the shared key/value layer,
// so captchas survive behind a load balancer when Redis is configured.
type kvCaptchaStore struct{}

func (kvCaptchaStore) key(id string) string { return "captcha:" + id }

func (s kvCaptchaStore) Set(id string, value string) error {
	kvSet(s.key(id), value, captchaTTL)
	return nil
}

func (s kvCaptchaStore) Get(id string, clear bool) string {
	if clear {
		v, _ := kvTake(s.key(id))
		return v
	}
	v, _ := kvGet(s.key(id))
	return v
}

func (s kvCaptchaStore) Verify(id, answer string, clear bool) bool {
	v := s.Get(id, clear)
	return v != "" && v == answer
}

var captchaStore base64Captcha.Store = kvCaptchaStore{}

// GenerateCaptcha creates a digit captcha and returns (id, dataURI) for the page to display.
func GenerateCaptcha() (string, string, error) {
	driver := base64Captcha.NewDriverDigit(40, 120, 5, 0.7, 80)
	c := base64Captcha.NewCaptcha(driver, captchaStore)
	id, b64, _, err := c.Generate()
	return id, b64, err
}

// VerifyCaptcha verifies the provided answer; the captcha is consumed either way.
func VerifyCaptcha(id, answer string) bool {
	if id == "" || answer == "" {
		return false
	}
	return captchaStore.Verify(id, answer, true)
}
