package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProposeDormDeterministic(t *testing.T) {
	first := proposeDorm("2024000123")
	assert.Equal(t, first, proposeDorm("2024000123"))
	assert.Contains(t, dormPool, first)
}

func TestClaimsPayment(t *testing.T) {
	assert.True(t, claimsPayment("I have PAID the fees"))
	assert.True(t, claimsPayment("payment done just now"))
	assert.True(t, claimsPayment("I transferred the money yesterday"))
	assert.False(t, claimsPayment("how much do I owe?"))
}
