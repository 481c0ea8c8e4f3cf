// Package idhash computes deterministic identifiers so that re-running a
// simulation with identical inputs reproduces identical IDs.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// ComputeTradeID computes a deterministic trade_id using SHA256 over
// (token, plan_id, model_id, seed, entry_ts). Each field is length-prefixed
// before hashing so field boundaries stay unambiguous regardless of content.
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(token, planID, modelID string, seed, entryTs int64) string {
	h := sha256.New()
	fields := []string{
		token,
		planID,
		modelID,
		strconv.FormatInt(seed, 10),
		strconv.FormatInt(entryTs, 10),
	}
	for _, f := range fields {
		fmt.Fprintf(h, "%d:%s", len(f), f)
	}
	return hex.EncodeToString(h.Sum(nil))
}
