package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/domain/moneyrequest"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
)

func escrowEvent(ctx context.Context, e *escrow.Escrow, eventType shared.EventType, actor shared.Actor, buyerAmount, sellerAmount int64, now time.Time) *shared.DomainEvent {
	return &shared.DomainEvent{
		EventID:       uuid.New(),
		Type:          eventType,
		AggregateID:   e.ID,
		TransactionID: e.TransactionID,
		Status:        string(e.Status),
		Amount:        e.Amount,
		Currency:      e.Currency,
		Participants: []shared.Participant{
			{AccountID: e.BuyerID, Role: "buyer", Amount: buyerAmount},
			{AccountID: e.SellerID, Role: "seller", Amount: sellerAmount},
		},
		ActorID:       actor.ID,
		CorrelationID: shared.CorrelationIDFromContext(ctx),
		OccurredAt:    now,
	}
}

func moneyRequestEvent(ctx context.Context, r *moneyrequest.MoneyRequest, eventType shared.EventType, actor shared.Actor, now time.Time) *shared.DomainEvent {
	return &shared.DomainEvent{
		EventID:     uuid.New(),
		Type:        eventType,
		AggregateID: r.ID,
		Status:      string(r.Status),
		Amount:      r.Amount,
		Currency:    r.Currency,
		Participants: []shared.Participant{
			{AccountID: r.PayerID, Role: "payer", Amount: -r.Amount},
			{AccountID: r.RequesterID, Role: "requester", Amount: r.Amount},
		},
		ActorID:       actor.ID,
		CorrelationID: shared.CorrelationIDFromContext(ctx),
		OccurredAt:    now,
	}
}
