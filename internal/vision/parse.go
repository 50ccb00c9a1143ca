package vision

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// extractJSON pulls the JSON object out of free-form model text. The object may
// be wrapped in a fenced code block or surrounded by prose.
func extractJSON(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", false
	}

	if start := strings.Index(content, "```"); start >= 0 {
		rest := content[start+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			block := strings.TrimSpace(rest[:end])
			block = strings.TrimSpace(strings.TrimPrefix(block, "json"))
			if strings.HasPrefix(block, "{") {
				return block, true
			}
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

func decodeObject(content string) (map[string]interface{}, error) {
	raw, ok := extractJSON(content)
	if !ok {
		if strings.TrimSpace(content) == "" {
			return nil, &ResponseFormatError{Reason: "empty response"}
		}
		return nil, &ResponseFormatError{Reason: "no JSON object found"}
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, &ResponseFormatError{Reason: "invalid JSON: " + err.Error()}
	}
	return obj, nil
}

func parseClassification(content string) (*Classification, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return nil, err
	}

	weight, ok := obj["estimated_weight"].(float64)
	if !ok {
		return nil, &ResponseFormatError{Field: "estimated_weight", Reason: "must be a number"}
	}
	if weight < 0 || math.IsInf(weight, 0) || math.IsNaN(weight) {
		return nil, &ResponseFormatError{Field: "estimated_weight", Reason: "must be non-negative"}
	}

	trashType, ok := obj["trash_type"].(string)
	if !ok || strings.TrimSpace(trashType) == "" {
		return nil, &ResponseFormatError{Field: "trash_type", Reason: "must be a non-empty string"}
	}

	return &Classification{
		WeightKg:  decimal.NewFromFloat(weight).Round(3),
		TrashType: strings.TrimSpace(trashType),
	}, nil
}

func parseComparison(content string) (*Comparison, error) {
	obj, err := decodeObject(content)
	if err != nil {
		return nil, err
	}

	conf, ok := obj["confidence"].(float64)
	if !ok {
		return nil, &ResponseFormatError{Field: "confidence", Reason: "must be a number"}
	}
	if conf != math.Trunc(conf) {
		return nil, &ResponseFormatError{Field: "confidence", Reason: "must be an integer"}
	}
	if conf < MinConfidence || conf > MaxConfidence {
		return nil, &ResponseFormatError{Field: "confidence", Reason: "must be between 1 and 100"}
	}

	return &Comparison{Confidence: int(conf)}, nil
}
