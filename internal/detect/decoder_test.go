package detect

import (
	"testing"

	"github.com/fridgely/pantry-scan-service/internal/engine"
)

func channelMajorOutput(boxes int) engine.RawOutput {
	return engine.RawOutput{
		Data:  make([]float32, numChannels*boxes),
		Shape: []int64{1, numChannels, int64(boxes)},
	}
}

func boxMajorOutput(boxes int) engine.RawOutput {
	return engine.RawOutput{
		Data:  make([]float32, boxes*numChannels),
		Shape: []int64{1, int64(boxes), numChannels},
	}
}

func TestDecodeChannelMajorSingleBox(t *testing.T) {
	out := channelMajorOutput(8400)
	// box 7, class 50 (broccoli)
	out.Data[(boxChannels+50)*8400+7] = 0.97

	result := Decode(out)
	if len(result) != 1 {
		t.Fatalf("got %d candidates, want 1", len(result))
	}
	c := result[0]
	if c.Name != "Broccoli" || c.Category != CategoryVegetable || c.Confidence != 0.97 {
		t.Fatalf("candidate = %+v, want Broccoli/vegetable/0.97", c)
	}
}

func TestDecodeBoxMajor(t *testing.T) {
	out := boxMajorOutput(300)
	// box 12, class 47 (apple)
	out.Data[12*numChannels+boxChannels+47] = 0.88

	result := Decode(out)
	if len(result) != 1 {
		t.Fatalf("got %d candidates, want 1", len(result))
	}
	if result[0].Name != "Apple" || result[0].Category != CategoryFruit {
		t.Fatalf("candidate = %+v, want Apple/fruit", result[0])
	}
}

func TestDecodeBelowThresholdIgnored(t *testing.T) {
	out := channelMajorOutput(100)
	out.Data[(boxChannels+46)*100+3] = 0.49

	if result := Decode(out); len(result) != 0 {
		t.Fatalf("got %d candidates, want 0 below threshold", len(result))
	}
}

func TestDecodeDedupesCaseInsensitiveNames(t *testing.T) {
	out := channelMajorOutput(100)
	// same class on two boxes; only the higher score survives
	out.Data[(boxChannels+51)*100+1] = 0.6
	out.Data[(boxChannels+51)*100+2] = 0.9

	result := Decode(out)
	if len(result) != 1 {
		t.Fatalf("got %d candidates, want 1 after dedup", len(result))
	}
	if result[0].Confidence != 0.9 {
		t.Fatalf("confidence = %f, want 0.9 (highest kept)", result[0].Confidence)
	}
}

func TestDecodeNoDuplicateNamesInvariant(t *testing.T) {
	out := channelMajorOutput(200)
	for b := 0; b < 200; b++ {
		out.Data[(boxChannels+b%classCount)*200+b] = 0.5 + float32(b%50)/100.0
	}

	result := Decode(out)
	seen := make(map[string]bool)
	for _, c := range result {
		if seen[c.Name] {
			t.Fatalf("duplicate name %q in decode result", c.Name)
		}
		seen[c.Name] = true
	}
}

func TestDecodeOrderedByScoreDescending(t *testing.T) {
	out := channelMajorOutput(100)
	out.Data[(boxChannels+46)*100+0] = 0.7 // banana
	out.Data[(boxChannels+47)*100+1] = 0.9 // apple
	out.Data[(boxChannels+49)*100+2] = 0.8 // orange

	result := Decode(out)
	if len(result) != 3 {
		t.Fatalf("got %d candidates, want 3", len(result))
	}
	want := []string{"Apple", "Orange", "Banana"}
	for i, name := range want {
		if result[i].Name != name {
			t.Fatalf("result[%d] = %s, want %s", i, result[i].Name, name)
		}
	}
}

func TestDecodeMaxDetectionsCap(t *testing.T) {
	out := channelMajorOutput(classCount)
	for b := 0; b < classCount; b++ {
		out.Data[(boxChannels+b)*classCount+b] = 0.95
	}

	result := Decode(out)
	if len(result) != MaxDetections {
		t.Fatalf("got %d candidates, want cap %d", len(result), MaxDetections)
	}
}

func TestDecodeUnsupportedShapes(t *testing.T) {
	cases := []engine.RawOutput{
		{Data: make([]float32, 10), Shape: []int64{1, 5, 2}},
		{Data: make([]float32, 0), Shape: []int64{1, numChannels, 0}},
		{Data: make([]float32, numChannels), Shape: []int64{numChannels}},
		{Data: nil, Shape: nil},
		{Data: make([]float32, 10), Shape: []int64{2, numChannels, 5}},
	}
	for i, out := range cases {
		if result := Decode(out); len(result) != 0 {
			t.Fatalf("case %d: got %d candidates, want empty result", i, len(result))
		}
	}
}

func TestDecodeTruncatedBufferIsEmpty(t *testing.T) {
	out := engine.RawOutput{
		Data:  make([]float32, 100),
		Shape: []int64{1, numChannels, 8400},
	}
	if result := Decode(out); len(result) != 0 {
		t.Fatal("truncated buffer must decode to empty result")
	}
}

func TestClassNameResolution(t *testing.T) {
	if got := ClassName(50); got != "Broccoli" {
		t.Fatalf("ClassName(50) = %q, want Broccoli", got)
	}
	if got := ClassName(9); got != "Traffic light" {
		t.Fatalf("ClassName(9) = %q, want Traffic light", got)
	}
	for _, id := range []int{-1, 80, 500} {
		if got := ClassName(id); got != "Unknown" {
			t.Fatalf("ClassName(%d) = %q, want Unknown", id, got)
		}
		if got := ClassCategory(id); got != CategoryOther {
			t.Fatalf("ClassCategory(%d) = %q, want other", id, got)
		}
	}
}
