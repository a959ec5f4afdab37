package detect

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Merge combines per-photo results from one scan session into a single
// deduplicated result. Candidates are grouped by case-insensitive trimmed
// name, the highest-confidence instance wins each group, and the merged set
// is re-filtered by the confidence threshold. Fresh ids are assigned. The
// operation is commutative and idempotent.
func Merge(perPhoto []Result) Result {
	best := make(map[string]Candidate)
	for _, result := range perPhoto {
		for _, c := range result {
			key := strings.ToLower(strings.TrimSpace(c.Name))
			if existing, ok := best[key]; !ok || c.Confidence > existing.Confidence {
				best[key] = c
			}
		}
	}

	merged := make(Result, 0, len(best))
	for _, c := range best {
		if c.Confidence < ConfidenceThreshold {
			continue
		}
		c.ID = uuid.NewString()
		merged = append(merged, c)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Confidence != merged[j].Confidence {
			return merged[i].Confidence > merged[j].Confidence
		}
		return merged[i].Name < merged[j].Name
	})
	return merged
}
