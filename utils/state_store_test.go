package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOAuthState_SingleUseAndProviderBound(t *testing.T) {
	state := NewOAuthState("github")
	assert.False(t, ConsumeOAuthState("google", state))
	// spent by the mismatched attempt
	assert.False(t, ConsumeOAuthState("github", state))

	state = NewOAuthState("github")
	assert.True(t, ConsumeOAuthState("github", state))
	assert.False(t, ConsumeOAuthState("github", state))
	assert.False(t, ConsumeOAuthState("github", ""))
}
