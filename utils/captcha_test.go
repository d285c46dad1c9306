package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptcha_SingleUse(t *testing.T) {
	id, image, err := GenerateCaptcha()
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Contains(t, image, "data:image/")

	answer := captchaStore.Get(id, false)
	require.Len(t, answer, 5)

	assert.True(t, VerifyCaptcha(id, answer))
	// consumed by the first verification
	assert.False(t, VerifyCaptcha(id, answer))
}

func TestCaptcha_WrongAnswerSpendsChallenge(t *testing.T) {
	id, _, err := GenerateCaptcha()
	require.NoError(t, err)
	answer := captchaStore.Get(id, false)

	assert.False(t, VerifyCaptcha(id, "wrong"))
	assert.False(t, VerifyCaptcha(id, answer))
	assert.False(t, VerifyCaptcha("", answer))
	assert.False(t, VerifyCaptcha(id, ""))
}
