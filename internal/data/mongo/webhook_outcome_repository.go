package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketplace-escrow-ledger/internal/domain/payment"
)

const (
	// WebhookOutcomeCollectionName holds one document per payment confirmation delivery
	WebhookOutcomeCollectionName = "payment_webhook_outcomes"
)

// WebhookOutcomeRepository implements payment.OutcomeRepository for MongoDB
type WebhookOutcomeRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

func NewWebhookOutcomeRepository(logger *slog.Logger, db *mongo.Database) *WebhookOutcomeRepository {
	return &WebhookOutcomeRepository{
		db:     db,
		logger: logger,
	}
}

func (r *WebhookOutcomeRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(WebhookOutcomeCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "external_ref", Value: 1}, {Key: "received_at", Value: -1}}},
		{Keys: bson.D{{Key: "needs_review", Value: 1}}},
	})
	if err != nil {
		r.logger.Error("Failed to create webhook outcome indexes", "error", err)
		return fmt.Errorf("failed to create webhook outcome indexes: %w", err)
	}
	return nil
}

// Record appends an outcome document
func (r *WebhookOutcomeRepository) Record(ctx context.Context, outcome *payment.WebhookOutcome) error {
	collection := r.db.Collection(WebhookOutcomeCollectionName)

	if _, err := collection.InsertOne(ctx, outcome); err != nil {
		r.logger.Error("Failed to record webhook outcome",
			"external_ref", outcome.ExternalRef,
			"outcome", string(outcome.Outcome),
			"error", err)
		return fmt.Errorf("failed to record webhook outcome: %w", err)
	}
	return nil
}

// ListByExternalRef returns every delivery recorded for a gateway reference, newest first
func (r *WebhookOutcomeRepository) ListByExternalRef(ctx context.Context, externalRef string) ([]*payment.WebhookOutcome, error) {
	collection := r.db.Collection(WebhookOutcomeCollectionName)

	opts := options.Find().SetSort(bson.D{{Key: "received_at", Value: -1}})
	cursor, err := collection.Find(ctx, bson.M{"external_ref": externalRef}, opts)
	if err != nil {
		r.logger.Error("Failed to list webhook outcomes", "external_ref", externalRef, "error", err)
		return nil, fmt.Errorf("failed to list webhook outcomes: %w", err)
	}
	defer cursor.Close(ctx)

	outcomes := make([]*payment.WebhookOutcome, 0)
	if err := cursor.All(ctx, &outcomes); err != nil {
		return nil, fmt.Errorf("failed to decode webhook outcomes: %w", err)
	}
	return outcomes, nil
}

var _ payment.OutcomeRepository = (*WebhookOutcomeRepository)(nil)
