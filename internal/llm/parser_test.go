package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubDimensionResponse_CleanJSON(t *testing.T) {
	raw := `{
		"sub_dimension": "知识点覆盖",
		"score": 8.5,
		"full_score": 10,
		"rating": "良好",
		"score_range": "7.5-9",
		"judgment_basis": "覆盖了大部分知识点",
		"issues": [
			{"description": "未讲判别式", "location": "第3轮", "quote": "...", "severity": "high", "impact": "目标未完成"}
		],
		"highlights": [
			{"description": "引导自然", "location": "第1轮", "quote": "你还记得..."}
		]
	}`

	s := ParseSubDimensionResponse(raw)
	assert.Equal(t, "知识点覆盖", s.SubDimension)
	assert.Equal(t, 8.5, s.Score)
	assert.Equal(t, 10.0, s.FullScore)
	assert.Equal(t, "良好", s.Rating)
	assert.Equal(t, "覆盖了大部分知识点", s.JudgmentBasis)
	require.Len(t, s.Issues, 1)
	assert.Equal(t, SeverityHigh, s.Issues[0].Severity)
	require.Len(t, s.Highlights, 1)
}

func TestParseSubDimensionResponse_FencedBlock(t *testing.T) {
	raw := "以下是评估结果:\n```json\n{\"sub_dimension\": \"能力培养覆盖\", \"score\": 6, \"full_score\": 10, \"rating\": \"合格\", \"judgment_basis\": \"部分覆盖\"}\n```"

	s := ParseSubDimensionResponse(raw)
	assert.Equal(t, "能力培养覆盖", s.SubDimension)
	assert.Equal(t, 6.0, s.Score)
	assert.Equal(t, "合格", s.Rating)
}

func TestParseSubDimensionResponse_ThinkingBlockStripped(t *testing.T) {
	raw := "<thinking>这个对话覆盖了 {一些} 内容</thinking>\n{\"score\": 4, \"judgment_basis\": \"ok\"}"

	s := ParseSubDimensionResponse(raw)
	assert.Equal(t, 4.0, s.Score)
	assert.Equal(t, "ok", s.JudgmentBasis)
}

func TestParseSubDimensionResponse_RepairsTrailingCommaAndComments(t *testing.T) {
	raw := `{
		"score": 3, // 打分偏低
		"judgment_basis": "见 http://example.com/doc 说明",
		"issues": [],
	}`

	s := ParseSubDimensionResponse(raw)
	assert.Equal(t, 3.0, s.Score)
	assert.Contains(t, s.JudgmentBasis, "http://example.com/doc")
}

func TestParseSubDimensionResponse_DefaultsForMissingFields(t *testing.T) {
	s := ParseSubDimensionResponse(`{"score": 2}`)
	assert.Equal(t, 2.0, s.Score)
	assert.Equal(t, 5.0, s.FullScore)
	assert.Equal(t, "未知", s.Rating)
	assert.Equal(t, "评分依据缺失", s.JudgmentBasis)
	assert.NotNil(t, s.Issues)
	assert.NotNil(t, s.Highlights)
}

func TestParseSubDimensionResponse_ScoreAsString(t *testing.T) {
	s := ParseSubDimensionResponse(`{"score": "4.5", "full_score": "10"}`)
	assert.Equal(t, 4.5, s.Score)
	assert.Equal(t, 10.0, s.FullScore)
}

func TestParseSubDimensionResponse_Garbage(t *testing.T) {
	s := ParseSubDimensionResponse("对不起,我无法评估这段对话。")
	assert.Equal(t, 0.0, s.Score)
	assert.Equal(t, 5.0, s.FullScore)
	assert.Equal(t, "解析失败", s.Rating)
	assert.Contains(t, s.JudgmentBasis, "LLM返回解析失败")
}

func TestClampSeverity(t *testing.T) {
	cases := map[string]string{
		"high":     SeverityHigh,
		"HIGH":     SeverityHigh,
		"高":        SeverityHigh,
		"low":      SeverityLow,
		"低":        SeverityLow,
		"medium":   SeverityMedium,
		"critical": SeverityMedium,
		"":         SeverityMedium,
	}
	for in, want := range cases {
		assert.Equal(t, want, clampSeverity(in), "input %q", in)
	}
}

func TestParseFailure(t *testing.T) {
	s := ParseFailure("boom")
	assert.Equal(t, 0.0, s.Score)
	assert.Equal(t, 5.0, s.FullScore)
	assert.Equal(t, "LLM返回解析失败: boom", s.JudgmentBasis)
}
