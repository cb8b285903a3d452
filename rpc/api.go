package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// NoteFields is the plaintext material the prover hashes into a commitment.
type NoteFields struct {
	Address string `json:"address"`
	Psi     string `json:"psi"`
	Value   string `json:"value"`
	Token   string `json:"token"`
	Source  string `json:"source"`
}

// MerklePath is one inclusion path in the node's commitment tree. Found is
// false when the commitment has not been confirmed into the tree yet.
type MerklePath struct {
	Commitment string   `json:"commitment"`
	Found      bool     `json:"found"`
	Path       []string `json:"path"`
}

// MerklePathsResult carries the tree root the paths are valid against.
type MerklePathsResult struct {
	Root  string       `json:"root"`
	Paths []MerklePath `json:"paths"`
}

// SubmitResult is the node's acknowledgement of an accepted transaction.
type SubmitResult struct {
	Height  uint64 `json:"height"`
	TxnHash string `json:"txn_hash"`
}

// DeriveAddress asks the node for the shielded address belonging to the
// wallet secret key.
func (c *Client) DeriveAddress(ctx context.Context, secretKey string) (string, error) {
	var res struct {
		Address string `json:"address"`
	}
	req := map[string]string{"secret_key": secretKey}
	if err := c.call(ctx, c.client, "/v0/derive-address", req, &res); err != nil {
		return "", err
	}
	return res.Address, nil
}

// GeneratePsi requests a fresh blinding nonce for a new note.
func (c *Client) GeneratePsi(ctx context.Context) (string, error) {
	var res struct {
		Psi string `json:"psi"`
	}
	if err := c.call(ctx, c.client, "/v0/generate-psi", map[string]string{}, &res); err != nil {
		return "", err
	}
	return res.Psi, nil
}

// CalculateCommitment asks the node to derive the binding commitment for a
// note's fields.
func (c *Client) CalculateCommitment(ctx context.Context, fields NoteFields) (string, error) {
	var res struct {
		Commitment string `json:"commitment"`
	}
	if err := c.call(ctx, c.client, "/v0/calculate-commitment", fields, &res); err != nil {
		return "", err
	}
	return res.Commitment, nil
}

// MerklePathsForNotes fetches the current inclusion paths for the given
// commitments, plus the root they prove against.
func (c *Client) MerklePathsForNotes(ctx context.Context, commitments []string) (*MerklePathsResult, error) {
	var res MerklePathsResult
	req := map[string][]string{"commitments": commitments}
	if err := c.call(ctx, c.client, "/v0/merkle-paths", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GenerateTransferProof runs the remote prover. Uses the long-timeout
// client: proving takes minutes, not seconds.
func (c *Client) GenerateTransferProof(ctx context.Context, transfer interface{}) (json.RawMessage, error) {
	var res struct {
		Snark json.RawMessage `json:"snark"`
	}
	if err := c.call(ctx, c.proofClient, "/v0/prove", transfer, &res); err != nil {
		return nil, err
	}
	if len(res.Snark) == 0 {
		return nil, fmt.Errorf("prover returned an empty snark")
	}
	return res.Snark, nil
}

// SubmitTransaction sends a generated proof to the node for inclusion.
func (c *Client) SubmitTransaction(ctx context.Context, snark json.RawMessage) (*SubmitResult, error) {
	var res SubmitResult
	req := map[string]json.RawMessage{"snark": snark}
	if err := c.call(ctx, c.client, "/v0/transactions", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Height returns the node's current block height. This is a read-side
// convenience for balance refresh and status display; it is gated by the
// circuit breaker so a down backend costs one probe per cooldown instead of
// a timeout per call.
func (c *Client) Height(ctx context.Context) (uint64, error) {
	if !c.breaker.Allow() {
		return 0, ErrBreakerOpen
	}
	var res struct {
		Height uint64 `json:"height"`
	}
	if err := c.call(ctx, c.client, "/v0/height", map[string]string{}, &res); err != nil {
		return 0, err
	}
	return res.Height, nil
}
