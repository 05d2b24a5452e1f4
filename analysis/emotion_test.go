package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		frames []Frame
		want   Summary
	}{
		{
			name:   "no frames",
			frames: nil,
			want:   Summary{},
		},
		{
			name: "no face detected",
			frames: []Frame{
				{Timestamp: 1},
				{Timestamp: 2, LookingAway: true},
			},
			want: Summary{TotalFrames: 2},
		},
		{
			name: "mixed frames",
			frames: []Frame{
				{Timestamp: 0, FaceDetected: true, Dominant: "Happy", Confidence: 0.8},
				{Timestamp: 1, FaceDetected: true, Emotions: map[string]float64{"neutral": 0.7, "happy": 0.2}, Confidence: 0.6},
				{Timestamp: 2, FaceDetected: true, LookingAway: true, Dominant: "neutral", Confidence: 0.4},
				{Timestamp: 3, FaceDetected: false},
			},
			want: Summary{
				TotalFrames:       4,
				FaceFrames:        3,
				FacePresence:      75,
				EyeContact:        50,
				AverageConfidence: 0.6,
				DominantEmotion:   "neutral",
				EmotionPercentages: map[string]float64{
					"happy":   33.33,
					"neutral": 66.67,
				},
				EmotionAverages: map[string]float64{
					"happy":   0.2,
					"neutral": 0.7,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.frames))
		})
	}
}

func TestDominantOf(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{"explicit label wins", Frame{Dominant: "SAD", Emotions: map[string]float64{"happy": 1}}, "sad"},
		{"argmax of scores", Frame{Emotions: map[string]float64{"angry": 0.1, "surprised": 0.5}}, "surprised"},
		{"tie resolves alphabetically", Frame{Emotions: map[string]float64{"neutral": 0.5, "calm": 0.5}}, "calm"},
		{"nothing to pick", Frame{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DominantOf(tt.frame))
		})
	}
}

func TestMergeKeepsOrder(t *testing.T) {
	existing := []Frame{{Timestamp: 1}, {Timestamp: 5}}
	incoming := []Frame{{Timestamp: 3}, {Timestamp: 0}}

	merged := Merge(existing, incoming)

	got := make([]float64, 0, len(merged))
	for _, f := range merged {
		got = append(got, f.Timestamp)
	}
	assert.Equal(t, []float64{0, 1, 3, 5}, got)
	assert.Equal(t, 5.0, existing[1].Timestamp)
}
