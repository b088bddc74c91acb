package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

var bareNumberPattern = regexp.MustCompile(`^-?\d+(?:\.\d+)?`)

// scoredResponse is the JSON shape shared by the judge and the media analyzers.
type scoredResponse struct {
	Score    *float64 `mapstructure:"score"`
	Feedback string   `mapstructure:"feedback"`
	Notes    string   `mapstructure:"notes"`
}

// parseScored decodes a model response into a score. Besides the requested JSON object it
// accepts a bare leading number, which models sometimes return despite instructions.
func parseScored(raw string) (*scoredResponse, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, errors.New("empty model response")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		if number := bareNumberPattern.FindString(cleaned); number != "" {
			score, parseErr := strconv.ParseFloat(number, 64)
			if parseErr == nil {
				return &scoredResponse{Score: &score}, nil
			}
		}
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	var out scoredResponse
	if err := mapstructure.WeakDecode(data, &out); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if out.Score == nil {
		return nil, errors.New("gemini response has no score")
	}

	out.Feedback = strings.TrimSpace(out.Feedback)
	out.Notes = strings.TrimSpace(out.Notes)
	return &out, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
