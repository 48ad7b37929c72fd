package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/cropkit/pkg/types"
)

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// CenterBox is the subject box assumed when a model gives no usable answer
var CenterBox = types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}

// ParseAnalysis decodes a model reply into an AnalysisResult. Models wrap
// JSON in code fences, add comments and leave trailing commas; all of that is
// tolerated. A reply that still cannot be decoded yields a low confidence
// fallback centered on the image rather than an error.
func ParseAnalysis(raw string) *types.AnalysisResult {
	cleaned := SanitizeJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return fallback("unclear image", "Model returned non-JSON response", "unclear", "non-json")
	}

	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return fallback("parse error", "Failed to parse model response", "parse-error")
	}

	if result.Primary.Label == "" && result.Primary.Confidence == 0 {
		if result.Primary.Cx == 0 && result.Primary.Cy == 0 {
			result.Primary.Cx, result.Primary.Cy = 0.5, 0.5
		}
		if result.Primary.Box.W == 0 && result.Primary.Box.H == 0 {
			result.Primary.Box = CenterBox
		}
	}
	return &result
}

// SanitizeJSON strips code fences, comments and trailing commas and keeps
// only the outermost object
func SanitizeJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func fallback(label, description string, tags ...string) *types.AnalysisResult {
	return &types.AnalysisResult{
		Primary: types.Primary{
			Label:      label,
			Confidence: 0.1,
			Box:        CenterBox,
			Cx:         0.5,
			Cy:         0.5,
		},
		Description: description,
		Tags:        append(tags, "fallback"),
	}
}
