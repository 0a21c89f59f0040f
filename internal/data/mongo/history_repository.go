package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketplace-escrow-ledger/internal/domain/history"
)

const (
	// HistoryCollectionName is the name of the per-account escrow history collection in MongoDB
	HistoryCollectionName = "escrow_history"
)

// HistoryRepository implements the history.Repository interface for MongoDB
type HistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewHistoryRepository creates a new MongoDB history repository
func NewHistoryRepository(logger *slog.Logger, db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the uniqueness and listing indexes. Safe to call on every start.
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(HistoryCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "account_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "occurred_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "aggregate_id", Value: 1}},
		},
	})
	if err != nil {
		r.logger.Error("Failed to create history indexes", "error", err)
		return fmt.Errorf("failed to create history indexes: %w", err)
	}
	return nil
}

// Upsert inserts the entry unless one already exists for the same event and account.
// Replayed events leave the stored document untouched.
func (r *HistoryRepository) Upsert(ctx context.Context, entry *history.Entry) error {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"event_id": entry.EventID, "account_id": entry.AccountID}
	update := bson.M{"$setOnInsert": entry}

	_, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		r.logger.Error("Failed to upsert history entry",
			"event_id", entry.EventID.String(),
			"account_id", entry.AccountID.String(),
			"error", err)
		return fmt.Errorf("failed to upsert history entry: %w", err)
	}

	return nil
}

// GetByAccountID retrieves paginated history entries for an account.
// Results are sorted by event time in descending order (newest first).
func (r *HistoryRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*history.Entry, error) {
	collection := r.db.Collection(HistoryCollectionName)

	filter := bson.M{"account_id": accountID}
	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get history entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get history entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*history.Entry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode history entries",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode history entries: %w", err)
	}

	return entries, nil
}

// CountByAccountID counts the total number of history entries for an account
func (r *HistoryRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	collection := r.db.Collection(HistoryCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"account_id": accountID})
	if err != nil {
		r.logger.Error("Failed to count history entries",
			"account_id", accountID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}

	return count, nil
}

// GetByAggregateID returns every participant entry for one escrow or money request
func (r *HistoryRepository) GetByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]*history.Entry, error) {
	collection := r.db.Collection(HistoryCollectionName)

	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}})
	cursor, err := collection.Find(ctx, bson.M{"aggregate_id": aggregateID}, opts)
	if err != nil {
		r.logger.Error("Failed to get history by aggregate",
			"aggregate_id", aggregateID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get history by aggregate: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*history.Entry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode history entries: %w", err)
	}
	return entries, nil
}

var _ history.Repository = (*HistoryRepository)(nil)
