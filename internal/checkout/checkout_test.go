package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckoutSession(t *testing.T) {
	client := NewSandbox(0)

	session, err := client.CreateCheckoutSession(context.Background(), SessionRequest{
		PriceID:   "price_pro",
		UserID:    "uid-1",
		UserEmail: "user@example.com",
		PlanName:  "Pro",
	})
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Regexp(t, `^cs_test_[a-z0-9]{9}$`, session.ID)
}

func TestCreateCheckoutSession_EmptyPriceID(t *testing.T) {
	client := NewSandbox(0)

	session, err := client.CreateCheckoutSession(context.Background(), SessionRequest{UserID: "uid-1"})
	assert.Error(t, err)
	assert.Nil(t, session)
}

func TestCreateCheckoutSession_ContextCancelled(t *testing.T) {
	client := NewSandbox(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session, err := client.CreateCheckoutSession(ctx, SessionRequest{PriceID: "price_basic"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, session)
}
