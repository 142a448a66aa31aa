// Package shielder implements the protocol engine of a shielded token pool.
//
// Overview:
//   - Users deposit fungible tokens into a pool that only stores commitments to their balances
//   - Every balance change spends one note (revealing its nullifier) and appends a fresh one
//   - Zero-knowledge relations (creation and update) bind notes, accounts and operations
//   - Settlement moves the underlying tokens once a transition has been accepted
//
// Components:
//   - Commitment layer: MiMC account, note and Merkle node hashes over the BN254 scalar field
//   - MerkleTree: sparse, append-only accumulator of note commitments with a log of past roots
//   - NullifierRegistry: append-only set of spent-note nullifiers
//   - Account / OpPub: the per-note account state machine
//   - VerifyCreation / VerifyUpdate: native form of the relations, also used by NativeBackend
//   - Pool: the serialized controller owning a PoolState and driving settlement
//
// The in-circuit counterparts of the relations live in internal/transactions and the SNARK
// backends in internal/backend.
//
// WARNING: This package is for research and educational purposes. Use with caution in production environments.
package shielder
