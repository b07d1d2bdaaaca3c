package job

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/jbride/mujina/internal/mjerr"
)

// MerkleRootKind distinguishes a job whose merkle root is already fixed
// (no extranonce to roll — typically a header-only synthetic job) from one
// that must be computed from a coinbase template plus extranonce2.
type MerkleRootKind int

const (
	MerkleRootFixed MerkleRootKind = iota
	MerkleRootComputed
)

// JobTemplate describes one unit of hashing work a board can be assigned.
type JobTemplate struct {
	ID             string
	PrevBlockHash  chainhash.Hash
	Version        uint32
	VersionMask    uint32 // rollable bits of Version a chip may vary (0 disables version rolling)
	Bits           uint32 // compact nBits
	ShareTarget    *big.Int
	Time           uint32
	MerkleKind     MerkleRootKind
	FixedMerkle    chainhash.Hash   // valid when MerkleKind == MerkleRootFixed
	CoinbasePrefix []byte           // valid when MerkleKind == MerkleRootComputed
	CoinbaseSuffix []byte           // valid when MerkleKind == MerkleRootComputed
	MerkleBranch   []chainhash.Hash // valid when MerkleKind == MerkleRootComputed
}

// RolledVersion applies the chip-reported version bits to the template's
// base version, masked to the bits this job allows a chip to roll.
func (t JobTemplate) RolledVersion(chipVersionBits uint32) uint32 {
	return (t.Version &^ t.VersionMask) | (chipVersionBits & t.VersionMask)
}

// Target returns the block-level target derived from Bits.
func (t JobTemplate) Target() *big.Int {
	return BitsToTarget(t.Bits)
}

// ComputeMerkleRoot computes the block's merkle root given an extranonce2,
// or returns an error if this job carries a fixed, header-only root that
// has nothing to roll.
func (t JobTemplate) ComputeMerkleRoot(extranonce2 []byte) (chainhash.Hash, error) {
	if t.MerkleKind == MerkleRootFixed {
		return chainhash.Hash{}, mjerr.ProtocolErr("cannot compute merkle root for header-only job")
	}

	coinbase := make([]byte, 0, len(t.CoinbasePrefix)+len(extranonce2)+len(t.CoinbaseSuffix))
	coinbase = append(coinbase, t.CoinbasePrefix...)
	coinbase = append(coinbase, extranonce2...)
	coinbase = append(coinbase, t.CoinbaseSuffix...)

	root := chainhash.DoubleHashH(coinbase)
	for _, branch := range t.MerkleBranch {
		root = chainhash.DoubleHashH(append(append([]byte{}, root[:]...), branch[:]...))
	}
	return root, nil
}

// Extranonce2 is a board/thread-local extranonce component used when
// rolling a computed-merkle-root job.
type Extranonce2 []byte

// Share is a candidate solution submitted by a hash thread back to the job
// source that produced the template it came from.
type Share struct {
	JobID       string
	Nonce       uint32
	Time        uint32
	Version     uint32
	Extranonce2 Extranonce2 // nil for fixed-merkle-root jobs
}

// HashRate is an exponentially-smoothed hash rate estimate, reported
// periodically to a source via SourceCommand.
type HashRate float64
