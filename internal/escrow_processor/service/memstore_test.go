package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/marketplace-escrow-ledger/internal/domain/escrow"
	"github.com/marketplace-escrow-ledger/internal/domain/moneyrequest"
	"github.com/marketplace-escrow-ledger/internal/domain/outbox"
	"github.com/marketplace-escrow-ledger/internal/domain/payment"
	"github.com/marketplace-escrow-ledger/internal/domain/shared"
	"github.com/marketplace-escrow-ledger/internal/domain/wallet"
	"github.com/marketplace-escrow-ledger/internal/escrow_processor/components"
)

// memStore is a transactional in-memory ledger. Transactions are serialized and a
// failed unit of work restores the state it started from.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	accounts     map[uuid.UUID]wallet.Account
	movements    []wallet.Movement
	escrows      map[uuid.UUID]escrow.Escrow
	transactions map[uuid.UUID]payment.Transaction
	requests     map[uuid.UUID]moneyrequest.MoneyRequest
	messages     []outbox.Message
	outcomes     []payment.WebhookOutcome
}

type memSnapshot struct {
	accounts     map[uuid.UUID]wallet.Account
	movements    []wallet.Movement
	escrows      map[uuid.UUID]escrow.Escrow
	transactions map[uuid.UUID]payment.Transaction
	requests     map[uuid.UUID]moneyrequest.MoneyRequest
	messages     []outbox.Message
}

func newMemStore() *memStore {
	return &memStore{
		accounts:     make(map[uuid.UUID]wallet.Account),
		escrows:      make(map[uuid.UUID]escrow.Escrow),
		transactions: make(map[uuid.UUID]payment.Transaction),
		requests:     make(map[uuid.UUID]moneyrequest.MoneyRequest),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ExecuteTx runs transactions one at a time. Concurrent tests therefore check the
// status re-reads and guarded transitions, not row lock interleaving; that part is
// Postgres' FOR UPDATE and is covered by the repository SQL tests.
func (s *memStore) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := memSnapshot{
		accounts:     copyMap(s.accounts),
		movements:    append([]wallet.Movement(nil), s.movements...),
		escrows:      copyMap(s.escrows),
		transactions: copyMap(s.transactions),
		requests:     copyMap(s.requests),
		messages:     append([]outbox.Message(nil), s.messages...),
	}
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.accounts, s.movements, s.escrows = snap.accounts, snap.movements, snap.escrows
		s.transactions, s.requests, s.messages = snap.transactions, snap.requests, snap.messages
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) repositories() components.Repositories {
	return components.Repositories{
		Accounts:      memAccounts{s},
		Movements:     memMovements{s},
		Escrows:       memEscrows{s},
		Transactions:  memTransactions{s},
		MoneyRequests: memRequests{s},
		Outbox:        memOutbox{s},
		Outcomes:      memOutcomes{s},
	}
}

type memAccounts struct{ s *memStore }

func (r memAccounts) Create(ctx context.Context, acc *wallet.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[acc.ID]; ok {
		return wallet.ErrDuplicateAccount{AccountID: acc.ID}
	}
	r.s.accounts[acc.ID] = *acc
	return nil
}

func (r memAccounts) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	acc, ok := r.s.accounts[id]
	if !ok {
		return nil, wallet.ErrAccountNotFound{AccountID: id}
	}
	return &acc, nil
}

func (r memAccounts) EnsureCustody(ctx context.Context, currency string) (*wallet.Account, error) {
	custody := wallet.NewCustodyAccount(currency)
	r.s.mu.Lock()
	if _, ok := r.s.accounts[custody.ID]; !ok {
		r.s.accounts[custody.ID] = *custody
	}
	r.s.mu.Unlock()
	return r.GetByID(ctx, custody.ID)
}

func (r memAccounts) LockForUpdate(ctx context.Context, id uuid.UUID) (*wallet.Account, error) {
	return r.GetByID(ctx, id)
}

func (r memAccounts) UpdateBalance(ctx context.Context, id uuid.UUID, balance int64, version int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	acc, ok := r.s.accounts[id]
	if !ok || acc.Version != version {
		return wallet.ErrConcurrentModification{AccountID: id}
	}
	acc.Balance = balance
	acc.Version++
	r.s.accounts[id] = acc
	return nil
}

func (r memAccounts) SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	acc, ok := r.s.accounts[id]
	if !ok {
		return wallet.ErrAccountNotFound{AccountID: id}
	}
	acc.Disabled = disabled
	acc.Version++
	r.s.accounts[id] = acc
	return nil
}

func (r memAccounts) WithTx(tx pgx.Tx) wallet.AccountRepository { return r }

type memMovements struct{ s *memStore }

func (r memMovements) Create(ctx context.Context, m *wallet.Movement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r memMovements) filter(keep func(m wallet.Movement) bool) []*wallet.Movement {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*wallet.Movement
	for _, m := range r.s.movements {
		if keep(m) {
			m := m
			out = append(out, &m)
		}
	}
	return out
}

func (r memMovements) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*wallet.Movement, error) {
	all := r.filter(func(m wallet.Movement) bool { return m.AccountID == accountID })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r memMovements) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return int64(len(r.filter(func(m wallet.Movement) bool { return m.AccountID == accountID }))), nil
}

func (r memMovements) SumByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var sum int64
	for _, m := range r.filter(func(m wallet.Movement) bool { return m.AccountID == accountID }) {
		sum += m.Amount
	}
	return sum, nil
}

func (r memMovements) ListByReference(ctx context.Context, referenceID uuid.UUID) ([]*wallet.Movement, error) {
	return r.filter(func(m wallet.Movement) bool { return m.ReferenceID == referenceID }), nil
}

func (r memMovements) WithTx(tx pgx.Tx) wallet.MovementRepository { return r }

type memEscrows struct{ s *memStore }

func (r memEscrows) Create(ctx context.Context, e *escrow.Escrow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.escrows {
		if existing.TransactionID == e.TransactionID {
			return escrow.ErrDuplicateEscrow{TransactionID: e.TransactionID}
		}
	}
	r.s.escrows[e.ID] = *e
	return nil
}

func (r memEscrows) GetByID(ctx context.Context, id uuid.UUID) (*escrow.Escrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.escrows[id]
	if !ok {
		return nil, escrow.ErrEscrowNotFound{EscrowID: id}
	}
	return &e, nil
}

func (r memEscrows) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*escrow.Escrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.escrows {
		if e.TransactionID == transactionID {
			e := e
			return &e, nil
		}
	}
	return nil, escrow.ErrEscrowNotFound{}
}

func (r memEscrows) LockForUpdate(ctx context.Context, id uuid.UUID) (*escrow.Escrow, error) {
	return r.GetByID(ctx, id)
}

func (r memEscrows) UpdateTransition(ctx context.Context, e *escrow.Escrow, from escrow.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.escrows[e.ID]
	if !ok || stored.Status != from {
		return escrow.ErrInvalidTransition{EscrowID: e.ID, From: from, To: e.Status}
	}
	r.s.escrows[e.ID] = *e
	return nil
}

func (r memEscrows) ListDueForRelease(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []escrow.Escrow
	for _, e := range r.s.escrows {
		if e.DueForRelease(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].AutoReleaseAt.Before(*due[j].AutoReleaseAt) })
	ids := make([]uuid.UUID, 0, len(due))
	for _, e := range due {
		if len(ids) == limit {
			break
		}
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (r memEscrows) WithTx(tx pgx.Tx) escrow.Repository { return r }

type memTransactions struct{ s *memStore }

func (r memTransactions) Create(ctx context.Context, txn *payment.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.transactions {
		if existing.ExternalRef == txn.ExternalRef {
			return payment.ErrDuplicateExternalRef{ExternalRef: txn.ExternalRef}
		}
	}
	r.s.transactions[txn.ID] = *txn
	return nil
}

func (r memTransactions) GetByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	txn, ok := r.s.transactions[id]
	if !ok {
		return nil, payment.ErrTransactionNotFound{TransactionID: id}
	}
	return &txn, nil
}

func (r memTransactions) GetByExternalRef(ctx context.Context, externalRef string) (*payment.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, txn := range r.s.transactions {
		if txn.ExternalRef == externalRef {
			txn := txn
			return &txn, nil
		}
	}
	return nil, payment.ErrTransactionNotFound{ExternalRef: externalRef}
}

func (r memTransactions) LockByExternalRef(ctx context.Context, externalRef string) (*payment.Transaction, error) {
	return r.GetByExternalRef(ctx, externalRef)
}

func (r memTransactions) UpdateStatus(ctx context.Context, txn *payment.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.transactions[txn.ID]
	if !ok {
		return payment.ErrTransactionNotFound{TransactionID: txn.ID}
	}
	if stored.Status.IsFinal() {
		return payment.ErrStatusFinal
	}
	r.s.transactions[txn.ID] = *txn
	return nil
}

func (r memTransactions) WithTx(tx pgx.Tx) payment.Repository { return r }

type memRequests struct{ s *memStore }

func (r memRequests) Create(ctx context.Context, req *moneyrequest.MoneyRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.requests[req.ID] = *req
	return nil
}

func (r memRequests) GetByID(ctx context.Context, id uuid.UUID) (*moneyrequest.MoneyRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, moneyrequest.ErrRequestNotFound{RequestID: id}
	}
	return &req, nil
}

func (r memRequests) LockForUpdate(ctx context.Context, id uuid.UUID) (*moneyrequest.MoneyRequest, error) {
	return r.GetByID(ctx, id)
}

func (r memRequests) UpdateStatus(ctx context.Context, req *moneyrequest.MoneyRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.requests[req.ID]
	if !ok || stored.Status != moneyrequest.StatusPending {
		return moneyrequest.ErrInvalidTransition{RequestID: req.ID, From: moneyrequest.StatusPending, To: req.Status}
	}
	r.s.requests[req.ID] = *req
	return nil
}

func (r memRequests) ListExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]uuid.UUID, 0)
	for _, req := range r.s.requests {
		if len(ids) == limit {
			break
		}
		if req.Status == moneyrequest.StatusPending && !req.ExpiresAt.After(now) {
			ids = append(ids, req.ID)
		}
	}
	return ids, nil
}

func (r memRequests) ListByAccount(ctx context.Context, accountID uuid.UUID, direction moneyrequest.Direction, limit, offset int) ([]*moneyrequest.MoneyRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*moneyrequest.MoneyRequest
	for _, req := range r.s.requests {
		if (direction == moneyrequest.DirectionSent && req.RequesterID == accountID) ||
			(direction == moneyrequest.DirectionReceived && req.PayerID == accountID) {
			req := req
			out = append(out, &req)
		}
	}
	return out, nil
}

func (r memRequests) WithTx(tx pgx.Tx) moneyrequest.Repository { return r }

type memOutbox struct{ s *memStore }

func (r memOutbox) Create(ctx context.Context, message *outbox.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	message.ID = int64(len(r.s.messages) + 1)
	r.s.messages = append(r.s.messages, *message)
	return nil
}

func (r memOutbox) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	return nil, nil
}

func (r memOutbox) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	return nil
}

func (r memOutbox) IncrementAttempts(ctx context.Context, id int64) error { return nil }

func (r memOutbox) ListByAggregateID(ctx context.Context, aggregateID uuid.UUID) ([]*outbox.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*outbox.Message
	for _, m := range r.s.messages {
		if m.AggregateID == aggregateID {
			m := m
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r memOutbox) WithTx(tx pgx.Tx) outbox.Repository { return r }

type memOutcomes struct{ s *memStore }

func (r memOutcomes) Record(ctx context.Context, outcome *payment.WebhookOutcome) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.outcomes = append(r.s.outcomes, *outcome)
	return nil
}

func (r memOutcomes) ListByExternalRef(ctx context.Context, externalRef string) ([]*payment.WebhookOutcome, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*payment.WebhookOutcome
	for _, o := range r.s.outcomes {
		if o.ExternalRef == externalRef {
			o := o
			out = append(out, &o)
		}
	}
	return out, nil
}
