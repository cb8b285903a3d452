package note

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// A Note is a private value record, the shielded equivalent of a UTXO.
// The commitment binds all other fields together and is computed by the
// prover service; the client treats it as an opaque identifier.
type Note struct {
	Address    string     `json:"address"`
	Psi        string     `json:"psi"`
	Value      string     `json:"value"` // micro-units, big-endian hex
	Token      string     `json:"token"`
	Source     string     `json:"source"`
	Commitment string     `json:"commitment"`
	Spent      bool       `json:"spent"`
	Pending    bool       `json:"pending"`
	LockedBy   *uuid.UUID `json:"locked_by,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
}

// Usable reports whether the note can fund a new transfer. Notes that are
// spent, or leased to an in-flight transfer, are excluded.
func (n *Note) Usable() bool {
	return !n.Spent && !n.Pending
}

// Amount decodes the note value into micro-units.
func (n *Note) Amount() (*big.Int, error) {
	return DecodeValue(n.Value)
}
