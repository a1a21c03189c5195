package ranker

import (
	"math"
	"time"

	"github.com/psychesim/psychemem-go/pkg/storage"
)

// Recompute policies for Store.RecomputeImportance. A policy maps a record
// to its new importance; the store clamps the result into [0, 1].

// RecencyWeightedPolicy decays importance exponentially with record age.
//
// The new importance is importance * exp(-ln2 * age / halfLife), so a
// record loses half its importance per half-life. Fresh or future-dated
// records keep their importance unchanged.
func RecencyWeightedPolicy(halfLife time.Duration) storage.ImportancePolicy {
	if halfLife <= 0 {
		halfLife = DefaultRecencyHalfLife
	}
	return func(record *storage.Record) float64 {
		age := time.Since(record.CreatedAt)
		if age <= 0 {
			return record.Importance
		}
		return record.Importance * math.Exp(-math.Ln2*age.Seconds()/halfLife.Seconds())
	}
}

// FlatDecayPolicy subtracts a fixed amount from every record's importance.
//
// Useful as a cheap periodic fade before a purge pass. Negative rates are
// treated as zero.
func FlatDecayPolicy(rate float64) storage.ImportancePolicy {
	if rate < 0 {
		rate = 0
	}
	return func(record *storage.Record) float64 {
		return record.Importance - rate
	}
}
