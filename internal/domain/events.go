package domain

// EventType tags a domain event.
type EventType string

// Event types emitted by the ledger.
const (
	EventPoolCreated        EventType = "pool_created"
	EventParticipantEntered EventType = "participant_entered"
	EventPoolFundsWithdrawn EventType = "pool_funds_withdrawn"
)

// Event is an append-only, externally observable fact about a completed
// mutation. Events are emitted after state commits and are never used for
// internal control flow.
type Event interface {
	EventType() EventType
	EventPool() PoolID
	OccurredAt() int64 // unix timestamp in milliseconds
}

// PoolCreated is emitted once per successful CreatePool.
type PoolCreated struct {
	PoolID            PoolID      `json:"pool_id"`
	Name              string      `json:"name"`
	RewardToken       RewardToken `json:"reward_token"`
	EntryAmount       int64       `json:"entry_amount"`
	StartTime         int64       `json:"start_time"`
	EndTime           int64       `json:"end_time"`
	BasePrice         int64       `json:"base_price"`
	CurrentPrice      int64       `json:"current_price"`
	UpperCircuitLimit int64       `json:"upper_circuit_limit"`
	LowerCircuitLimit int64       `json:"lower_circuit_limit"`
	CreatedAt         int64       `json:"created_at"`
}

func (e PoolCreated) EventType() EventType { return EventPoolCreated }
func (e PoolCreated) EventPool() PoolID    { return e.PoolID }
func (e PoolCreated) OccurredAt() int64    { return e.CreatedAt }

// ParticipantEntered is emitted once per successful EnterPool.
type ParticipantEntered struct {
	PoolID       PoolID    `json:"pool_id"`
	Holder       AccountID `json:"holder"`
	Amount       int64     `json:"amount"`
	PriceAtEntry int64     `json:"price_at_entry"`
	EnteredAt    int64     `json:"entered_at"`
	// Sequence is the 1-based admission index within the pool's current
	// participant list; TotalBalance is the pool balance after admission.
	Sequence     int   `json:"sequence"`
	TotalBalance int64 `json:"total_balance"`
}

func (e ParticipantEntered) EventType() EventType { return EventParticipantEntered }
func (e ParticipantEntered) EventPool() PoolID    { return e.PoolID }
func (e ParticipantEntered) OccurredAt() int64    { return e.EnteredAt }

// PoolFundsWithdrawn is emitted once per successful WithdrawPoolFunds.
// Amounts carries the per-recipient amounts actually sent.
type PoolFundsWithdrawn struct {
	PoolID      PoolID      `json:"pool_id"`
	Recipients  []AccountID `json:"recipients"`
	Amounts     []int64     `json:"amounts"`
	Total       int64       `json:"total"`
	Remainder   int64       `json:"remainder"`
	WithdrawnAt int64       `json:"withdrawn_at"`
}

func (e PoolFundsWithdrawn) EventType() EventType { return EventPoolFundsWithdrawn }
func (e PoolFundsWithdrawn) EventPool() PoolID    { return e.PoolID }
func (e PoolFundsWithdrawn) OccurredAt() int64    { return e.WithdrawnAt }

// EventRecord is the storable form of an emitted event.
// Corresponds to the pool_events table in PostgreSQL.
type EventRecord struct {
	ID        int64  // BIGSERIAL primary key
	EventID   string // deterministic sha256 id, see idhash
	PoolID    string // base58 pool id
	Type      string
	Payload   []byte // JSON-encoded event
	Timestamp int64  // event occurrence, unix ms
	CreatedAt int64  // record creation timestamp (ms)
}

// AdmissionPoint is one admission flattened for timeseries analytics.
// Corresponds to the pool_admissions table in ClickHouse.
type AdmissionPoint struct {
	PoolID      string // base58 pool id
	Holder      string // base58 holder account
	Amount      int64
	Price       int64
	TimestampMs int64
}
