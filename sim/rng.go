package sim

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// === ScenarioKey ===

// ScenarioKey uniquely identifies a reproducible federated run.
// Two runs with the same ScenarioKey, scenario, and node set MUST produce
// bit-for-bit identical event streams for every deterministic node.
type ScenarioKey int64

// NewScenarioKey creates a ScenarioKey from a seed value.
func NewScenarioKey(seed int64) ScenarioKey {
	return ScenarioKey(seed)
}

// === Per-node seed derivation ===

// DeriveNodeSeed derives a node's RNG seed from its id and the scenario seed.
//
// The derivation is SHA-256 of "<nodeID>_<seed>", truncated to the first
// 8 bytes interpreted big-endian. A fixed cryptographic digest is required
// here: language-default string hashing is randomized per process invocation
// and silently breaks cross-run reproducibility, which is exactly the failure
// mode this function exists to rule out. The formula is shared with every
// non-Go node implementation, so it must never change without a protocol bump.
func DeriveNodeSeed(nodeID string, key ScenarioKey) int64 {
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s_%d", nodeID, int64(key))))
	return int64(binary.BigEndian.Uint64(digest[:8]))
}

// NewNodeRNG returns the deterministically-seeded RNG for one node.
// Each node owns exactly one RNG; drawing from it is the only permitted
// source of randomness in a deterministic node.
func NewNodeRNG(nodeID string, key ScenarioKey) *rand.Rand {
	return rand.New(rand.NewSource(DeriveNodeSeed(nodeID, key)))
}
