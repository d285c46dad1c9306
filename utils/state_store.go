package utils

import (
	"time"

	"github.com/google/uuid"
)

const oauthStateTTL = 10 * time.Minute

func oauthStateKey(state string) string { return "oauth:state:" + state }

// NewOAuthState issues a single-use state token bound to provider.
func NewOAuthState(provider string) string {
	state := uuid.NewString()
	kvSet(oauthStateKey(state), provider, oauthStateTTL)
	return state
}

// ConsumeOAuthState reports whether state was issued for provider. A state is
// spent on first use, even when the provider does not match.
func ConsumeOAuthState(provider, state string) bool {
	if state == "" {
		return false
	}
	v, ok := kvTake(oauthStateKey(state))
	return ok && v == provider
}
