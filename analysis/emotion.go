// Package analysis aggregates per-frame video analysis (emotions, face presence,
// gaze) captured by the frontend during an interview into summary statistics.
package analysis

import (
	"math"
	"sort"
	"strings"
)

// Frame is one sampled video frame as reported by the client-side face model.
type Frame struct {
	Timestamp    float64            `json:"timestamp"` // seconds since the interview started
	Emotions     map[string]float64 `json:"emotions,omitempty"`
	Dominant     string             `json:"dominant,omitempty"`
	FaceDetected bool               `json:"face_detected"`
	LookingAway  bool               `json:"looking_away"`
	Confidence   float64            `json:"confidence,omitempty"`
}

// Summary holds the aggregated statistics for a set of frames. All percentage
// fields are in the range 0-100 and rounded to two decimals.
type Summary struct {
	TotalFrames        int                `json:"total_frames"`
	FaceFrames         int                `json:"face_frames"`
	FacePresence       float64            `json:"face_presence"`
	EyeContact         float64            `json:"eye_contact"`
	AverageConfidence  float64            `json:"average_confidence"`
	DominantEmotion    string             `json:"dominant_emotion,omitempty"`
	EmotionPercentages map[string]float64 `json:"emotion_percentages,omitempty"`
	EmotionAverages    map[string]float64 `json:"emotion_averages,omitempty"`
}

// DominantOf returns the frame's dominant emotion: the explicit label when set,
// otherwise the highest scoring emotion. Ties resolve alphabetically.
func DominantOf(f Frame) string {
	if f.Dominant != "" {
		return strings.ToLower(f.Dominant)
	}
	best := ""
	bestScore := math.Inf(-1)
	for _, name := range sortedKeys(f.Emotions) {
		if score := f.Emotions[name]; score > bestScore {
			best, bestScore = name, score
		}
	}
	return strings.ToLower(best)
}

// Aggregate computes face presence and eye contact over all frames, and
// emotion distribution and confidence over frames where a face was detected.
func Aggregate(frames []Frame) Summary {
	s := Summary{TotalFrames: len(frames)}
	if len(frames) == 0 {
		return s
	}

	dominantCounts := make(map[string]int)
	emotionSums := make(map[string]float64)
	emotionSeen := make(map[string]int)
	var confidenceSum float64
	eyeContact := 0

	for _, f := range frames {
		if !f.FaceDetected {
			continue
		}
		s.FaceFrames++
		if !f.LookingAway {
			eyeContact++
		}
		confidenceSum += f.Confidence
		if d := DominantOf(f); d != "" {
			dominantCounts[d]++
		}
		for name, score := range f.Emotions {
			key := strings.ToLower(name)
			emotionSums[key] += score
			emotionSeen[key]++
		}
	}

	s.FacePresence = percent(s.FaceFrames, s.TotalFrames)
	s.EyeContact = percent(eyeContact, s.TotalFrames)
	if s.FaceFrames == 0 {
		return s
	}
	s.AverageConfidence = round2(confidenceSum / float64(s.FaceFrames))

	if len(dominantCounts) > 0 {
		s.EmotionPercentages = make(map[string]float64, len(dominantCounts))
		bestCount := 0
		for _, name := range sortedKeys(dominantCounts) {
			count := dominantCounts[name]
			s.EmotionPercentages[name] = percent(count, s.FaceFrames)
			if count > bestCount {
				s.DominantEmotion, bestCount = name, count
			}
		}
	}
	if len(emotionSums) > 0 {
		s.EmotionAverages = make(map[string]float64, len(emotionSums))
		for name, sum := range emotionSums {
			s.EmotionAverages[name] = round2(sum / float64(emotionSeen[name]))
		}
	}
	return s
}

// Merge appends incoming frames to existing ones and keeps them ordered by
// timestamp. Neither input is modified.
func Merge(existing, incoming []Frame) []Frame {
	out := make([]Frame, 0, len(existing)+len(incoming))
	out = append(out, existing...)
	out = append(out, incoming...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) * 100 / float64(total))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
