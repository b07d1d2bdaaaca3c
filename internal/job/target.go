// Package job implements job templates, share targets, and the
// event/command channel model ("source handles") that connects job
// producers (a pool, the synthetic CPU miner, a Stratum client) to the
// boards hashing their work.
package job

import (
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
)

// maxTargetHex is the difficulty-1 target (pool difficulty convention),
// the same constant the Bitcoin network itself uses as the easiest
// possible target.
const maxTargetHex = "00000000FFFF0000000000000000000000000000000000000000000000000000"

var maxTarget = func() *big.Int {
	t, ok := new(big.Int).SetString(maxTargetHex, 16)
	if !ok {
		panic("job: invalid maxTargetHex constant")
	}
	return t
}()

// DifficultyToTarget converts a pool difficulty into the 256-bit target a
// share's hash must be below. difficulty 0 or 1 both map to the maximum
// (easiest) target, matching the convention that those values mean "no
// difficulty restriction beyond the network difficulty-1 target".
func DifficultyToTarget(difficulty uint64) *big.Int {
	if difficulty == 0 || difficulty == 1 {
		return new(big.Int).Set(maxTarget)
	}
	return new(big.Int).Div(maxTarget, new(big.Int).SetUint64(difficulty))
}

// BitsToTarget decodes a compact nBits field (as carried in a block
// header) into its full 256-bit target, using btcd's compact-float
// decoder rather than a hand-rolled one.
func BitsToTarget(bits uint32) *big.Int {
	return blockchain.CompactToBig(bits)
}
