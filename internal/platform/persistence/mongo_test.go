package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type uuidDoc struct {
	AccountID uuid.UUID `bson:"account_id"`
}

func TestBSONRegistry_UUID(t *testing.T) {
	registry := NewBSONRegistry()
	accountID := uuid.New()

	t.Run("EncodesAsStandardUUIDBinary", func(t *testing.T) {
		raw, err := bson.MarshalWithRegistry(registry, uuidDoc{AccountID: accountID})
		require.NoError(t, err)

		subtype, data := bson.Raw(raw).Lookup("account_id").Binary()
		assert.Equal(t, bson.TypeBinaryUUID, subtype)
		assert.Equal(t, accountID[:], data)

		var decoded uuidDoc
		require.NoError(t, bson.UnmarshalWithRegistry(registry, raw, &decoded))
		assert.Equal(t, accountID, decoded.AccountID)
	})

	t.Run("DecodesLegacyStringIDs", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{"account_id": accountID.String()})
		require.NoError(t, err)

		var decoded uuidDoc
		require.NoError(t, bson.UnmarshalWithRegistry(registry, raw, &decoded))
		assert.Equal(t, accountID, decoded.AccountID)
	})

	t.Run("RejectsMalformedIDs", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{"account_id": "not-a-uuid"})
		require.NoError(t, err)

		var decoded uuidDoc
		assert.Error(t, bson.UnmarshalWithRegistry(registry, raw, &decoded))
	})

	t.Run("NullDecodesToNil", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{"account_id": nil})
		require.NoError(t, err)

		decoded := uuidDoc{AccountID: accountID}
		require.NoError(t, bson.UnmarshalWithRegistry(registry, raw, &decoded))
		assert.Equal(t, uuid.Nil, decoded.AccountID)
	})
}

func TestMongoDB_CloseWithoutClient(t *testing.T) {
	assert.NoError(t, (&MongoDB{}).Close(context.Background()))
}
