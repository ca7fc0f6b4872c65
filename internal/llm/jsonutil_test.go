package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_FencedBlockWins(t *testing.T) {
	content := "前言 {不是这个}\n```json\n{\"sub_dimension\": \"x\"}\n```\n后记"
	assert.Equal(t, `{"sub_dimension": "x"}`, ExtractJSON(content))
}

func TestExtractJSON_BraceSpan(t *testing.T) {
	content := `评估如下: {"score": 5, "nested": {"a": 1}} 完毕`
	assert.Equal(t, `{"score": 5, "nested": {"a": 1}}`, ExtractJSON(content))
}

func TestExtractJSON_NoCandidate(t *testing.T) {
	assert.Equal(t, "", ExtractJSON("没有任何结构化内容"))
}

func TestRepairJSON_MissingCommas(t *testing.T) {
	raw := "{\"items\": [\"a\"\n\"b\"],\n\"score\": \"1\"\n\"rating\": \"ok\"}"
	repaired := RepairJSON(raw)

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(repaired), &v))
	assert.Equal(t, "1", v["score"])
	assert.Equal(t, "ok", v["rating"])
}

func TestRepairJSON_TrailingCommasAndComments(t *testing.T) {
	raw := `{
		/* 模型输出的注释 */
		"score": 2, // 行尾注释
		"list": [1, 2, 3,],
	}`
	repaired := RepairJSON(raw)

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(repaired), &v))
	assert.Equal(t, 2.0, v["score"])
}

func TestStripLineComment_KeepsURLs(t *testing.T) {
	line := `"url": "http://example.com/a//b", `
	assert.Equal(t, line, stripLineComment(line))
}
