package domain

import (
	"encoding/json"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// IDLength is the byte length of pool and account identifiers.
const IDLength = 32

// PoolID is a caller-chosen, globally unique pool identifier.
type PoolID [IDLength]byte

// ParsePoolID decodes a base58-encoded pool identifier.
func ParsePoolID(s string) (PoolID, error) {
	var id PoolID
	raw, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("decode pool id: %w", err)
	}
	if len(raw) != IDLength {
		return id, fmt.Errorf("pool id must be %d bytes, got %d", IDLength, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// String returns the base58 text form of the pool id.
func (id PoolID) String() string {
	return base58.Encode(id[:])
}

// IsZero reports whether the id is the all-zero value.
func (id PoolID) IsZero() bool {
	return id == PoolID{}
}

// MarshalJSON encodes the id as a base58 string.
func (id PoolID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes the id from a base58 string.
func (id *PoolID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePoolID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// AccountID identifies a ledger account (holder, custody or recipient).
type AccountID [IDLength]byte

// ParseAccountID decodes a base58-encoded account identifier.
func ParseAccountID(s string) (AccountID, error) {
	var id AccountID
	raw, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("decode account id: %w", err)
	}
	if len(raw) != IDLength {
		return id, fmt.Errorf("account id must be %d bytes, got %d", IDLength, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// String returns the base58 text form of the account id.
func (id AccountID) String() string {
	return base58.Encode(id[:])
}

// IsZero reports whether the id is the all-zero value.
func (id AccountID) IsZero() bool {
	return id == AccountID{}
}

// MarshalJSON encodes the id as a base58 string.
func (id AccountID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes the id from a base58 string.
func (id *AccountID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAccountID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// OnCurve reports whether the account id is a valid ed25519 point.
// Program-derived custody accounts are intentionally off-curve, so this is
// a signal for user-held accounts, not a hard admission requirement.
func (id AccountID) OnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(id[:])
	return err == nil
}
