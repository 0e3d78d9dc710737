// Package ledger implements the pooled-deposit escrow state machine: pool
// lifecycle, participant admission, balance accounting and fund
// distribution. Token transfers and administrator identity are external
// collaborators; the ledger owns all pool and participant records.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pool-escrow/internal/domain"
	"pool-escrow/internal/token"
)

// EventSink receives domain events after a mutation commits. Sink failures
// are logged and never surfaced to the mutating caller.
type EventSink interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithSinks registers event sinks.
func WithSinks(sinks ...EventSink) Option {
	return func(l *Ledger) { l.sinks = append(l.sinks, sinks...) }
}

// WithLogger sets the ledger logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// Ledger owns all pool records. Mutations on the same pool are serialized;
// operations on different pools proceed independently. Queries return deep
// copies and never observe a partially mutated pool.
type Ledger struct {
	authz Authorizer
	token token.Executor
	sinks []EventSink
	log   zerolog.Logger
	now   func() time.Time

	// mu guards the pool registry (map and creation-order slice).
	// Each poolEntry carries its own lock; there is no cross-pool locking.
	mu    sync.RWMutex
	pools map[domain.PoolID]*poolEntry
	order []domain.PoolID
}

// poolEntry pairs a pool with its serialization state. busy is set while an
// external transfer is in flight for this pool; any mutating call arriving
// in that window fails with ErrReentrancy instead of deadlocking.
type poolEntry struct {
	mu   sync.RWMutex
	busy bool
	pool domain.Pool
}

// clearBusy releases the in-flight flag. Deferred by every mutating
// operation that sets it, so the flag is cleared on all exit paths.
func (e *poolEntry) clearBusy() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// New creates an empty ledger.
func New(authz Authorizer, exec token.Executor, opts ...Option) *Ledger {
	l := &Ledger{
		authz: authz,
		token: exec,
		log:   zerolog.Nop(),
		now:   time.Now,
		pools: make(map[domain.PoolID]*poolEntry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreatePool registers a new pool. Admin only. The pool id is caller
// supplied and must be unique for the ledger's lifetime; the supplied
// current price must lie within the circuit band. Start/end ordering and
// non-zero amounts are deliberately not validated here — callers
// self-validate.
func (l *Ledger) CreatePool(ctx context.Context, caller domain.AccountID, cfg domain.PoolConfig) (domain.PoolID, error) {
	if !l.authz.IsAdministrator(caller) {
		return domain.PoolID{}, domain.ErrNotAuthorized
	}

	createdAt := l.now().UnixMilli()

	l.mu.Lock()
	if _, exists := l.pools[cfg.ID]; exists {
		l.mu.Unlock()
		return domain.PoolID{}, domain.ErrDuplicatePool
	}
	if cfg.UpperCircuitLimit < cfg.CurrentPrice || cfg.LowerCircuitLimit > cfg.CurrentPrice {
		l.mu.Unlock()
		return domain.PoolID{}, domain.ErrInvalidCircuitBand
	}

	l.pools[cfg.ID] = &poolEntry{
		pool: domain.Pool{
			ID:                cfg.ID,
			Name:              cfg.Name,
			RewardToken:       cfg.RewardToken,
			EntryAmount:       cfg.EntryAmount,
			StartTime:         cfg.StartTime,
			EndTime:           cfg.EndTime,
			BasePrice:         cfg.BasePrice,
			CurrentPrice:      cfg.CurrentPrice,
			UpperCircuitLimit: cfg.UpperCircuitLimit,
			LowerCircuitLimit: cfg.LowerCircuitLimit,
			CreatedAt:         createdAt,
			Exists:            true,
		},
	}
	l.order = append(l.order, cfg.ID)
	l.mu.Unlock()

	l.emit(ctx, domain.PoolCreated{
		PoolID:            cfg.ID,
		Name:              cfg.Name,
		RewardToken:       cfg.RewardToken,
		EntryAmount:       cfg.EntryAmount,
		StartTime:         cfg.StartTime,
		EndTime:           cfg.EndTime,
		BasePrice:         cfg.BasePrice,
		CurrentPrice:      cfg.CurrentPrice,
		UpperCircuitLimit: cfg.UpperCircuitLimit,
		LowerCircuitLimit: cfg.LowerCircuitLimit,
		CreatedAt:         createdAt,
	})

	l.log.Info().Stringer("pool", cfg.ID).Str("name", cfg.Name).Msg("pool created")
	return cfg.ID, nil
}

// EnterPool admits the caller into a pool at the observed reference price.
// The entry amount is transferred from the caller's account into the pool's
// custody account before any ledger state changes; no state changes if the
// transfer fails.
func (l *Ledger) EnterPool(ctx context.Context, caller domain.AccountID, id domain.PoolID, observedPrice int64) (*domain.Receipt, error) {
	e := l.entry(id)
	if e == nil {
		return nil, domain.ErrPoolNotFound
	}

	now := l.now().UnixMilli()

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return nil, domain.ErrReentrancy
	}
	if now < e.pool.StartTime {
		e.mu.Unlock()
		return nil, domain.ErrPoolNotStarted
	}
	if now > e.pool.EndTime {
		e.mu.Unlock()
		return nil, domain.ErrPoolEnded
	}
	if observedPrice < e.pool.LowerCircuitLimit || observedPrice > e.pool.UpperCircuitLimit {
		e.mu.Unlock()
		return nil, domain.ErrPriceOutOfBand
	}
	amount := e.pool.EntryAmount
	custody := e.pool.RewardToken.Account
	e.busy = true
	e.mu.Unlock()
	defer e.clearBusy()

	// External call: the pool lock is released, the busy flag keeps every
	// other mutation on this pool out until the transfer settles.
	ok, err := l.token.TransferFrom(ctx, caller, custody, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransferFailed, err)
	}
	if !ok {
		return nil, domain.ErrTransferFailed
	}

	e.mu.Lock()
	e.pool.Participants = append(e.pool.Participants, domain.Participant{
		Holder:       caller,
		Amount:       amount,
		EnteredAt:    now,
		PriceAtEntry: observedPrice,
	})
	e.pool.TotalBalance += amount
	e.pool.CurrentPrice = observedPrice
	seq := len(e.pool.Participants)
	balance := e.pool.TotalBalance
	e.mu.Unlock()

	l.emit(ctx, domain.ParticipantEntered{
		PoolID:       id,
		Holder:       caller,
		Amount:       amount,
		PriceAtEntry: observedPrice,
		EnteredAt:    now,
		Sequence:     seq,
		TotalBalance: balance,
	})

	return &domain.Receipt{
		ReceiptID:    uuid.NewString(),
		PoolID:       id,
		Holder:       caller,
		Amount:       amount,
		PriceAtEntry: observedPrice,
		EnteredAt:    now,
	}, nil
}

// WithdrawPoolFunds distributes the pool balance to the recipients after the
// active window closes. Admin only. A single recipient receives the full
// balance; multiple recipients each receive floor(total/count) and the
// remainder stays in the custody account. Any individual transfer failure
// aborts the operation; transfers already sent in the same call are not
// rolled back.
func (l *Ledger) WithdrawPoolFunds(ctx context.Context, caller domain.AccountID, id domain.PoolID, recipients []domain.AccountID) (*domain.DistributionReport, error) {
	if len(recipients) == 0 {
		return nil, domain.ErrNoRecipients
	}

	e := l.entry(id)
	if e == nil {
		return nil, domain.ErrPoolNotFound
	}

	now := l.now().UnixMilli()

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return nil, domain.ErrReentrancy
	}
	if now <= e.pool.EndTime {
		e.mu.Unlock()
		return nil, domain.ErrPoolStillActive
	}
	if !l.authz.IsAdministrator(caller) {
		e.mu.Unlock()
		return nil, domain.ErrNotAuthorized
	}
	total := e.pool.TotalBalance
	custody := e.pool.RewardToken.Account
	e.busy = true
	e.mu.Unlock()
	defer e.clearBusy()

	amounts := make([]int64, len(recipients))
	var remainder int64
	if len(recipients) == 1 {
		amounts[0] = total
	} else {
		share := total / int64(len(recipients))
		for i := range amounts {
			amounts[i] = share
		}
		remainder = total - share*int64(len(recipients))
	}

	for i, recipient := range recipients {
		ok, err := l.token.Transfer(ctx, custody, recipient, amounts[i])
		if err != nil {
			return nil, fmt.Errorf("%w: pay recipient %s: %s", domain.ErrTransferFailed, recipient, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: pay recipient %s", domain.ErrTransferFailed, recipient)
		}
	}

	e.mu.Lock()
	e.pool.TotalBalance = 0
	e.pool.Participants = nil
	e.mu.Unlock()

	l.emit(ctx, domain.PoolFundsWithdrawn{
		PoolID:      id,
		Recipients:  recipients,
		Amounts:     amounts,
		Total:       total,
		Remainder:   remainder,
		WithdrawnAt: now,
	})

	if remainder > 0 {
		l.log.Warn().Stringer("pool", id).Int64("remainder", remainder).
			Msg("undistributed remainder left in custody")
	}

	return &domain.DistributionReport{
		ReportID:    uuid.NewString(),
		PoolID:      id,
		Recipients:  recipients,
		Amounts:     amounts,
		Total:       total,
		Remainder:   remainder,
		WithdrawnAt: now,
	}, nil
}

// GetPool returns a snapshot copy of the pool.
func (l *Ledger) GetPool(id domain.PoolID) (*domain.Pool, error) {
	e := l.entry(id)
	if e == nil {
		return nil, domain.ErrPoolNotFound
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pool.Clone(), nil
}

// GetAllPoolIDs returns all pool ids in creation order. Pools are never
// deleted, so ids of fully withdrawn pools remain listed.
func (l *Ledger) GetAllPoolIDs() []domain.PoolID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.PoolID, len(l.order))
	copy(out, l.order)
	return out
}

// GetPoolParticipants returns a snapshot copy of the pool's current
// participant sequence in admission order.
func (l *Ledger) GetPoolParticipants(id domain.PoolID) ([]domain.Participant, error) {
	e := l.entry(id)
	if e == nil {
		return nil, domain.ErrPoolNotFound
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Participant, len(e.pool.Participants))
	copy(out, e.pool.Participants)
	return out, nil
}

// entry looks up a pool entry; nil when the id is unknown.
func (l *Ledger) entry(id domain.PoolID) *poolEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pools[id]
}

// emit publishes an event to all sinks. Emission happens after the mutation
// committed and outside the pool lock; failures are logged only.
func (l *Ledger) emit(ctx context.Context, ev domain.Event) {
	for _, sink := range l.sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			l.log.Warn().Err(err).Str("event", string(ev.EventType())).
				Stringer("pool", ev.EventPool()).Msg("event sink failed")
		}
	}
}
