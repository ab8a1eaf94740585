// Package health implements the pure, on-demand health classification:
// a function of a rollup's current Status, its ThresholdSet, and wall
// clock. It holds no state of its own.
package health

import "github.com/chainbound-labs/rollupwatch/internal/rollup"

// Assess derives a HealthReport for one rollup. ever is true iff the Hub
// has ever recorded an event that advanced this rollup's status
// (Status.LastUpdated unset
// is indistinguishable from zero, so the caller passes this explicitly).
//
// Rule order (first match wins for Status; issues accumulate
// independently): Disconnected (no events) > Halted > Delayed > Healthy,
// then independent cadence checks that may add issues without changing
// a Healthy/Delayed verdict's severity.
func Assess(id rollup.ID, st rollup.Status, ever bool, now int64, thresholds rollup.ThresholdSet) rollup.HealthReport {
	report := rollup.HealthReport{
		Rollup: id,
		Issues: []string{},
	}

	if !ever {
		report.Status = rollup.Disconnected
		report.Issues = append(report.Issues, "no events")
		return report
	}

	age := now - st.LastUpdated
	ageCopy := age
	report.LastEventAgeSecs = &ageCopy

	switch {
	case age > thresholds.HaltedSecs:
		report.Status = rollup.Halted
	case age > thresholds.DelayedSecs:
		report.Status = rollup.Delayed
	default:
		report.Status = rollup.Healthy
	}

	// halted and delayed issues are reported in addition to the
	// no-batch/no-proof cadence issues below, deterministic order:
	// halted -> delayed -> no batch -> no proof -> no events.
	switch report.Status {
	case rollup.Halted:
		report.Issues = append(report.Issues, "exceeds halted threshold")
	case rollup.Delayed:
		report.Issues = append(report.Issues, "exceeds delayed threshold")
	}

	// Cadence issues fire only for a class that has been seen and gone
	// stale; a class that never advanced has no age to measure against.
	if st.LastBatchUpdated != 0 {
		batchAge := now - st.LastBatchUpdated
		report.LastBatchAgeSecs = &batchAge
		if batchAge > thresholds.BatchCadenceSecs {
			report.Issues = append(report.Issues, "No batch")
		}
	}

	if st.LastProofUpdated != 0 {
		proofAge := now - st.LastProofUpdated
		report.LastProofAgeSecs = &proofAge
		if proofAge > thresholds.ProofCadenceSecs {
			report.Issues = append(report.Issues, "No proof")
		}
	}

	return report
}
