package ingest

import "github.com/arkilian/lakeingest/pkg/types"

// Aggregate counts outcomes into a verdict. The run succeeds iff no chunk
// failed; an empty run succeeds.
func Aggregate(outcomes []types.ChunkOutcome) types.Verdict {
	v := types.Verdict{TotalChunks: len(outcomes)}
	for _, o := range outcomes {
		if o.Success {
			v.Succeeded++
		} else {
			v.Failed++
		}
	}
	v.OverallSuccess = v.Failed == 0
	return v
}
