package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// ExtractJSON pulls the first JSON object or array out of a model response.
// Markdown code fences and any prose around the value are dropped.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON value in model response", ErrUpstream)
	}

	open, closer := text[start], byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unterminated JSON value in model response", ErrUpstream)
}

// DecodeJSON extracts the JSON value from text and unmarshals it into v
func DecodeJSON(text string, v interface{}) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: invalid JSON in model response: %v", ErrUpstream, err)
	}
	return nil
}

// clamp limits v to [lo, hi]; NaN becomes lo
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// askJSON sends prompt to gen and decodes the JSON answer into v. It returns
// false when the call or the decoding failed; callers then use their fallback.
func askJSON(ctx context.Context, gen Generator, operation, prompt string, v interface{}) bool {
	text, err := gen.GenerateJSON(ctx, prompt)
	if err == nil {
		err = DecodeJSON(text, v)
	}
	if err != nil {
		slog.Warn("Using fallback for model response", "operation", operation, "error", err)
		LLMFallbacksTotal.WithLabelValues(operation).Inc()
		return false
	}
	return true
}
