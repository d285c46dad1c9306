package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCodeInvalid     = errors.New("verification code is invalid")
	ErrCodeExpired     = errors.New("verification code has expired")
	ErrTooManyRequests = errors.New("too many verification requests")
)

// A pending challenge is kept this long past its expiry so that a late answer
// is reported as expired rather than unknown.
const challengeGrace = 10 * time.Minute

// PhoneChallenge is a pending SMS code waiting for the user to type it back.
type PhoneChallenge struct {
	Phone     string    `json:"phone"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// GenerateVerificationCode creates a numeric code with given length.
func GenerateVerificationCode(n int) string {
	if n <= 0 {
		n = 6
	}
	digits := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			v = big.NewInt(time.Now().UnixNano() % 10)
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits)
}

func challengeKey(id string) string { return "verify:phone:challenge:" + id }
func phoneTokenKey(t string) string { return "verify:phone:token:" + t }

// PhoneSendAllowed enforces the per-phone resend cooldown and daily send limit.
func PhoneSendAllowed(phone string, cooldown time.Duration, maxPerDay int) bool {
	dayKey := "verify:phone:day:" + phone + ":" + nowFunc().Format("20060102")
	if maxPerDay > 0 && kvCount(dayKey) >= int64(maxPerDay) {
		return false
	}
	if cooldown > 0 && !kvSetNX("verify:phone:cooldown:"+phone, cooldown) {
		return false
	}
	kvIncr(dayKey, 24*time.Hour)
	return true
}

// StartPhoneChallenge stores a pending code for phone and returns the challenge id.
func StartPhoneChallenge(phone, code string, ttl time.Duration) string {
	id := uuid.NewString()
	ch := PhoneChallenge{Phone: phone, Code: code, ExpiresAt: nowFunc().Add(ttl)}
	savePhoneChallenge(id, ch)
	return id
}

func savePhoneChallenge(id string, ch PhoneChallenge) {
	b, _ := json.Marshal(ch)
	keep := ch.ExpiresAt.Sub(nowFunc()) + challengeGrace
	if keep <= 0 {
		keep = time.Second
	}
	kvSet(challengeKey(id), string(b), keep)
}

// CheckPhoneChallenge compares code against the pending challenge. On success the
// challenge is consumed and its phone returned. Wrong codes count as attempts;
// reaching maxAttempts discards the challenge.
func CheckPhoneChallenge(id, code string, maxAttempts int) (string, error) {
	raw, ok := kvGet(challengeKey(id))
	if !ok {
		return "", ErrCodeExpired
	}
	var ch PhoneChallenge
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		kvDel(challengeKey(id))
		return "", ErrCodeExpired
	}
	if maxAttempts > 0 && ch.Attempts >= maxAttempts {
		kvDel(challengeKey(id))
		return "", ErrTooManyRequests
	}
	if !nowFunc().Before(ch.ExpiresAt) {
		kvDel(challengeKey(id))
		return "", ErrCodeExpired
	}
	if ch.Code != code {
		ch.Attempts++
		if maxAttempts > 0 && ch.Attempts >= maxAttempts {
			kvDel(challengeKey(id))
			return "", ErrTooManyRequests
		}
		savePhoneChallenge(id, ch)
		return "", ErrCodeInvalid
	}
	if _, ok := kvTake(challengeKey(id)); !ok {
		// a concurrent request consumed it first
		return "", ErrCodeExpired
	}
	return ch.Phone, nil
}

// IssuePhoneToken returns a single-use token proving phone was verified.
func IssuePhoneToken(phone string, ttl time.Duration) string {
	token := uuid.NewString()
	kvSet(phoneTokenKey(token), phone, ttl)
	return token
}

// ConsumePhoneToken reports whether token was issued for phone. The token is spent either way.
func ConsumePhoneToken(token, phone string) bool {
	if token == "" {
		return false
	}
	v, ok := kvTake(phoneTokenKey(token))
	return ok && v == phone
}
