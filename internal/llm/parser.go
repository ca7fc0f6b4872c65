package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Severity levels for issues found in a transcript.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// IssueItem is a problem the model identified in the dialogue.
type IssueItem struct {
	Description string `json:"description"`
	Location    string `json:"location"`
	Quote       string `json:"quote"`
	Severity    string `json:"severity"`
	Impact      string `json:"impact"`
}

// HighlightItem is a notably good moment in the dialogue.
type HighlightItem struct {
	Description string `json:"description"`
	Location    string `json:"location"`
	Quote       string `json:"quote"`
}

// SubDimensionScore is the normalized result of one scoring call.
type SubDimensionScore struct {
	SubDimension  string          `json:"sub_dimension"`
	Score         float64         `json:"score"`
	FullScore     float64         `json:"full_score"`
	Rating        string          `json:"rating"`
	ScoreRange    string          `json:"score_range"`
	JudgmentBasis string          `json:"judgment_basis"`
	Issues        []IssueItem     `json:"issues"`
	Highlights    []HighlightItem `json:"highlights"`
}

// ParseFailure builds the zero-score placeholder used when a response
// cannot be parsed at all. The reason is preserved for debugging.
func ParseFailure(reason string) SubDimensionScore {
	return SubDimensionScore{
		Score:         0,
		FullScore:     5,
		Rating:        "解析失败",
		JudgmentBasis: fmt.Sprintf("LLM返回解析失败: %s", reason),
		Issues:        []IssueItem{},
		Highlights:    []HighlightItem{},
	}
}

// ParseSubDimensionResponse extracts a SubDimensionScore from raw model
// output. Total function: it never fails, falling back to a zero-score
// placeholder that carries the failure reason in judgment_basis.
func ParseSubDimensionResponse(raw string) SubDimensionScore {
	candidate := ExtractJSON(raw)
	if candidate == "" {
		return ParseFailure("响应中未找到JSON内容")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		repaired := RepairJSON(candidate)
		if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
			return ParseFailure(fmt.Sprintf("JSON语法错误: %v", err))
		}
	}
	return normalize(obj)
}

// normalize coerces the duck-typed parsed object into the score schema,
// defaulting every field the model omitted or mistyped.
func normalize(obj map[string]any) SubDimensionScore {
	s := SubDimensionScore{
		SubDimension:  asString(obj["sub_dimension"], ""),
		Score:         asNumber(obj["score"], 0),
		FullScore:     asNumber(obj["full_score"], 5),
		Rating:        asString(obj["rating"], "未知"),
		ScoreRange:    asString(obj["score_range"], ""),
		JudgmentBasis: asString(obj["judgment_basis"], "评分依据缺失"),
		Issues:        []IssueItem{},
		Highlights:    []HighlightItem{},
	}

	if items, ok := obj["issues"].([]any); ok {
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			s.Issues = append(s.Issues, IssueItem{
				Description: asString(m["description"], ""),
				Location:    asString(m["location"], ""),
				Quote:       asString(m["quote"], ""),
				Severity:    clampSeverity(asString(m["severity"], "")),
				Impact:      asString(m["impact"], ""),
			})
		}
	}
	if items, ok := obj["highlights"].([]any); ok {
		for _, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			s.Highlights = append(s.Highlights, HighlightItem{
				Description: asString(m["description"], ""),
				Location:    asString(m["location"], ""),
				Quote:       asString(m["quote"], ""),
			})
		}
	}
	return s
}

func asString(v any, def string) string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return def
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return def
	}
}

func asNumber(v any, def float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
		return def
	default:
		return def
	}
}

// clampSeverity forces severity into the three-valued enum; anything
// unrecognized becomes medium. Chinese labels are mapped through.
func clampSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SeverityHigh, "高":
		return SeverityHigh
	case SeverityLow, "低":
		return SeverityLow
	default:
		return SeverityMedium
	}
}
