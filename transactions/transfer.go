// Package transactions holds the wire records a confidential transfer is
// assembled from before it is handed to the prover.
package transactions

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/payy-network/payy-wallet/note"
	"github.com/payy-network/payy-wallet/rpc"
)

// KindTransfer is the proof kind for a standard shielded transfer.
const KindTransfer = "transfer"

var (
	ErrMissingPath    = errors.New("selected note has no merkle path")
	ErrNotConserved   = errors.New("input total does not equal amount plus change")
	ErrNegativeChange = errors.New("amount exceeds input total")
)

// InputNote is one consumed note together with its inclusion path.
type InputNote struct {
	Address    string   `json:"address"`
	Psi        string   `json:"psi"`
	Value      string   `json:"value"` // 32-byte big-endian hex
	Token      string   `json:"token"`
	Source     string   `json:"source"`
	MerklePath []string `json:"merkle_path"`
}

// OutputNote is a note the transfer creates.
type OutputNote struct {
	Address string `json:"address"`
	Psi     string `json:"psi"`
	Value   string `json:"value"`
	Token   string `json:"token"`
	Source  string `json:"source"`
}

// Transfer is the full proving request: what the prover needs to produce a
// snark the node will accept against MerkleRoot.
type Transfer struct {
	SecretKey  string       `json:"secret_key"`
	MerkleRoot string       `json:"merkle_root"`
	Inputs     []InputNote  `json:"inputs"`
	Outputs    []OutputNote `json:"outputs"`
	Kind       string       `json:"kind"`
}

// BuildParams collects everything a transfer is assembled from.
type BuildParams struct {
	SecretKey string
	Root      string
	Inputs    []note.Note
	Paths     map[string][]string // commitment -> merkle path
	Sender    string
	Recipient string
	Amount    *big.Int
	Token     string
	// Fresh blinding nonces for the two outputs.
	RecipientPsi string
	ChangePsi    string
}

// Build assembles the transfer and returns it with the exact change value.
// The shape is fixed at two outputs: recipient and change back to the
// sender. The change output is emitted even when change is zero, keeping
// the arity the circuit sees uniform.
func Build(p BuildParams) (*Transfer, *big.Int, error) {
	total := new(big.Int)
	inputs := make([]InputNote, 0, len(p.Inputs))
	for _, n := range p.Inputs {
		path, ok := p.Paths[n.Commitment]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingPath, n.Commitment)
		}
		v, err := n.Amount()
		if err != nil {
			return nil, nil, err
		}
		value, err := note.EncodeValue(v)
		if err != nil {
			return nil, nil, err
		}
		total.Add(total, v)
		inputs = append(inputs, InputNote{
			Address:    n.Address,
			Psi:        n.Psi,
			Value:      value,
			Token:      n.Token,
			Source:     n.Source,
			MerklePath: path,
		})
	}

	change := new(big.Int).Sub(total, p.Amount)
	if change.Sign() < 0 {
		return nil, nil, ErrNegativeChange
	}

	amountHex, err := note.EncodeValue(p.Amount)
	if err != nil {
		return nil, nil, err
	}
	changeHex, err := note.EncodeValue(change)
	if err != nil {
		return nil, nil, err
	}

	t := &Transfer{
		SecretKey:  p.SecretKey,
		MerkleRoot: p.Root,
		Inputs:     inputs,
		Outputs: []OutputNote{
			{Address: p.Recipient, Psi: p.RecipientPsi, Value: amountHex, Token: p.Token, Source: p.Sender},
			{Address: p.Sender, Psi: p.ChangePsi, Value: changeHex, Token: p.Token, Source: p.Sender},
		},
		Kind: KindTransfer,
	}
	if err := t.CheckConservation(); err != nil {
		return nil, nil, err
	}
	return t, change, nil
}

// CheckConservation verifies sum(inputs) == sum(outputs) exactly. The node
// would reject an unbalanced transfer anyway; checking here keeps a client
// bug from burning a proving run.
func (t *Transfer) CheckConservation() error {
	in, err := sumValues(len(t.Inputs), func(i int) string { return t.Inputs[i].Value })
	if err != nil {
		return err
	}
	out, err := sumValues(len(t.Outputs), func(i int) string { return t.Outputs[i].Value })
	if err != nil {
		return err
	}
	if in.Cmp(out) != 0 {
		return fmt.Errorf("%w: inputs %s, outputs %s", ErrNotConserved, in, out)
	}
	return nil
}

// ChangeFields returns the prover-facing field set of the change output,
// used to compute the change note's commitment before submission.
func (t *Transfer) ChangeFields() rpc.NoteFields {
	change := t.Outputs[len(t.Outputs)-1]
	return rpc.NoteFields{
		Address: change.Address,
		Psi:     change.Psi,
		Value:   change.Value,
		Token:   change.Token,
		Source:  change.Source,
	}
}

func sumValues(n int, at func(int) string) (*big.Int, error) {
	total := new(big.Int)
	for i := 0; i < n; i++ {
		v, err := note.DecodeValue(at(i))
		if err != nil {
			return nil, err
		}
		total.Add(total, v)
	}
	return total, nil
}
