package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction(t *testing.T) {
	buyer, seller, product := uuid.New(), uuid.New(), uuid.New()

	t.Run("SuccessfulCreation", func(t *testing.T) {
		txn, err := NewTransaction(buyer, seller, product, 100000, "USD", "gw_123")
		require.NoError(t, err)
		assert.Equal(t, TransactionStatusPending, txn.Status)
		assert.Equal(t, "gw_123", txn.ExternalRef)
		assert.Nil(t, txn.CompletedAt)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := NewTransaction(buyer, seller, product, 0, "USD", "gw")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = NewTransaction(buyer, buyer, product, 10, "USD", "gw")
		assert.ErrorIs(t, err, ErrSameParty)

		_, err = NewTransaction(buyer, seller, product, 10, "USD", "")
		assert.ErrorIs(t, err, ErrMissingExternal)
	})
}

func TestTransaction_StatusChanges(t *testing.T) {
	now := time.Now().UTC()

	txn, err := NewTransaction(uuid.New(), uuid.New(), uuid.New(), 100, "USD", "gw_1")
	require.NoError(t, err)
	require.NoError(t, txn.Complete(now))
	assert.Equal(t, TransactionStatusCompleted, txn.Status)
	require.NotNil(t, txn.CompletedAt)

	assert.ErrorIs(t, txn.Fail(now), ErrStatusFinal)
	assert.ErrorIs(t, txn.Complete(now), ErrStatusFinal)

	failed, _ := NewTransaction(uuid.New(), uuid.New(), uuid.New(), 100, "USD", "gw_2")
	require.NoError(t, failed.Fail(now))
	assert.Equal(t, TransactionStatusFailed, failed.Status)
	assert.Nil(t, failed.CompletedAt)
}

func TestConfirmation_Succeeded(t *testing.T) {
	assert.True(t, Confirmation{}.Succeeded())
	assert.True(t, Confirmation{Status: ConfirmationSucceeded}.Succeeded())
	assert.False(t, Confirmation{Status: ConfirmationFailed}.Succeeded())
}

func TestNewWebhookOutcome(t *testing.T) {
	c := Confirmation{ExternalRef: "gw_1", Amount: 500, TransactionID: uuid.New(), CorrelationID: "corr"}

	outcome := NewWebhookOutcome(c, SourceHTTP, OutcomeAmountMismatch, "expected 400")
	assert.Equal(t, "gw_1", outcome.ExternalRef)
	assert.Equal(t, int64(500), outcome.ReportedAmount)
	assert.True(t, outcome.NeedsReview)
	assert.Equal(t, SourceHTTP, outcome.Source)
	assert.Equal(t, "corr", outcome.CorrelationID)

	assert.False(t, NewWebhookOutcome(c, SourceKafka, OutcomeDuplicate, "").NeedsReview)
}
