package domain

// RewardToken describes the token a pool escrows: a display name and the
// custody account holding the pool's balance.
type RewardToken struct {
	Name    string    `json:"name"`
	Account AccountID `json:"account"`
}

// Participant is one admission record. Immutable once created; the slice
// holding them is cleared as a whole when pool funds are withdrawn.
type Participant struct {
	Holder       AccountID `json:"holder"`
	Amount       int64     `json:"amount"`         // always the pool's entry amount
	EnteredAt    int64     `json:"entered_at"`     // unix timestamp in milliseconds
	PriceAtEntry int64     `json:"price_at_entry"` // reference price observed at admission
}

// PoolConfig carries the caller-supplied fields of CreatePool.
// All amounts and prices are non-negative fixed-precision integer units;
// times are unix timestamps in milliseconds.
type PoolConfig struct {
	ID                PoolID
	Name              string
	RewardToken       RewardToken
	EntryAmount       int64
	StartTime         int64
	EndTime           int64
	BasePrice         int64
	CurrentPrice      int64
	UpperCircuitLimit int64
	LowerCircuitLimit int64
}

// Pool is the aggregate root owned by the ledger.
type Pool struct {
	ID                PoolID        `json:"id"`
	Name              string        `json:"name"`
	RewardToken       RewardToken   `json:"reward_token"`
	EntryAmount       int64         `json:"entry_amount"`
	StartTime         int64         `json:"start_time"`
	EndTime           int64         `json:"end_time"`
	BasePrice         int64         `json:"base_price"`
	CurrentPrice      int64         `json:"current_price"` // last entrant's observed price
	UpperCircuitLimit int64         `json:"upper_circuit_limit"`
	LowerCircuitLimit int64         `json:"lower_circuit_limit"`
	TotalBalance      int64         `json:"total_balance"`
	CreatedAt         int64         `json:"created_at"`
	Participants      []Participant `json:"participants"`
	Exists            bool          `json:"exists"`
}

// Clone returns a deep copy safe to hand out of the ledger.
func (p *Pool) Clone() *Pool {
	cp := *p
	if p.Participants != nil {
		cp.Participants = make([]Participant, len(p.Participants))
		copy(cp.Participants, p.Participants)
	}
	return &cp
}

// Receipt acknowledges a successful pool entry.
type Receipt struct {
	ReceiptID    string    `json:"receipt_id"`
	PoolID       PoolID    `json:"pool_id"`
	Holder       AccountID `json:"holder"`
	Amount       int64     `json:"amount"`
	PriceAtEntry int64     `json:"price_at_entry"`
	EnteredAt    int64     `json:"entered_at"`
}

// DistributionReport summarizes a completed fund withdrawal.
type DistributionReport struct {
	ReportID   string      `json:"report_id"`
	PoolID     PoolID      `json:"pool_id"`
	Recipients []AccountID `json:"recipients"`
	Amounts    []int64     `json:"amounts"` // per-recipient amounts actually sent
	Total      int64       `json:"total"`
	// Remainder is the floor-division residue that stays in the custody
	// account when Total does not divide evenly across recipients.
	Remainder   int64 `json:"remainder"`
	WithdrawnAt int64 `json:"withdrawn_at"`
}
