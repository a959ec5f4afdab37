// Package detect turns raw detection-model output buffers into named,
// confidence-scored candidates and merges candidates across captures.
package detect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fridgely/pantry-scan-service/internal/engine"
)

const (
	// ConfidenceThreshold is the minimum class score for a box to count.
	ConfidenceThreshold = 0.5
	// MaxDetections caps the distinct item names emitted per decode.
	MaxDetections = 50

	classCount  = 80
	boxChannels = 4
	numChannels = boxChannels + classCount
)

// Candidate is one recognized item: presence and confidence only, no
// geometry.
type Candidate struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Confidence float32  `json:"confidence"`
}

// Result is an ordered candidate list for one photo or one merged scan
// session. Order is confidence-descending.
type Result []Candidate

type layoutKind int

const (
	channelMajor layoutKind = iota // [1, 84, N]: score(b,c) at (4+c)*N + b
	boxMajor                       // [1, N, 84]: score(b,c) at b*84 + 4 + c
)

// outputLayout is the tagged variant resolved once per decode call.
type outputLayout struct {
	kind  layoutKind
	boxes int
}

func (l outputLayout) scoreIndex(box, class int) int {
	if l.kind == channelMajor {
		return (boxChannels+class)*l.boxes + box
	}
	return box*numChannels + boxChannels + class
}

// resolveLayout identifies the channel axis as the dimension equal to 84.
// Returns false when neither dimension matches or the box count is below 1.
func resolveLayout(shape []int64) (outputLayout, bool) {
	if len(shape) != 3 || shape[0] != 1 {
		return outputLayout{}, false
	}
	switch {
	case shape[1] == numChannels && shape[2] >= 1:
		return outputLayout{kind: channelMajor, boxes: int(shape[2])}, true
	case shape[2] == numChannels && shape[1] >= 1:
		return outputLayout{kind: boxMajor, boxes: int(shape[1])}, true
	default:
		return outputLayout{}, false
	}
}

type rawCandidate struct {
	classID int
	score   float32
}

// Decode scans every box in one raw output, keeps the best class per box
// above the confidence threshold, and emits candidates sorted by score with
// case-insensitive names deduplicated. Unsupported shapes decode to an empty
// result rather than an error.
func Decode(out engine.RawOutput) Result {
	layout, ok := resolveLayout(out.Shape)
	if !ok {
		return nil
	}
	if len(out.Data) < layout.boxes*numChannels {
		return nil
	}

	raw := make([]rawCandidate, 0, 64)
	for b := 0; b < layout.boxes; b++ {
		var maxScore float32
		maxClass := 0
		for c := 0; c < classCount; c++ {
			if s := out.Data[layout.scoreIndex(b, c)]; s > maxScore {
				maxScore = s
				maxClass = c
			}
		}
		if maxScore >= ConfidenceThreshold {
			raw = append(raw, rawCandidate{classID: maxClass, score: maxScore})
		}
	}

	// stable: ties keep scan order (lower box index first)
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].score > raw[j].score })

	seen := make(map[string]struct{}, len(raw))
	result := make(Result, 0, len(raw))
	for i, rc := range raw {
		if len(result) >= MaxDetections {
			break
		}
		name := ClassName(rc.classID)
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, Candidate{
			ID:         fmt.Sprintf("yolo-%d-%d", rc.classID, i),
			Name:       name,
			Category:   ClassCategory(rc.classID),
			Confidence: rc.score,
		})
	}
	return result
}
