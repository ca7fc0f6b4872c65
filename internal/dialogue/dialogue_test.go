package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timestampedLog = `日志创建时间: 2026-01-15 10:00:00
task_id: demo-42
学生档位: 中等

[2026-01-15 10:01:00] 第 1 轮
AI: 你好!今天我们学习一元二次方程。
你准备好了吗?
用户: 准备好了。

[2026-01-15 10:05:00] 第 2 轮
AI：我们先从因式分解开始。
用户：好的。
`

const stepHeaderLog = `task_id: demo-43

Step: 导入 | step_id: s1 | 第 1 轮 | 来源: runCard
AI: 欢迎来到今天的课程。
用户: 老师好。

Step: 讲解 | step_id: s2 | 第 2 轮 | 来源: runCard
AI: 下面进入正题。
---
用户: 明白了。
`

func TestParseTxt_TimestampedRounds(t *testing.T) {
	d := ParseTxt(timestampedLog)

	assert.Equal(t, "demo-42", d.Metadata.TaskID)
	assert.Equal(t, "中等", d.Metadata.StudentLevel)
	assert.Equal(t, "2026-01-15 10:00:00", d.Metadata.CreatedAt)
	assert.Equal(t, 2, d.Metadata.TotalRounds)

	require.Len(t, d.Stages, 1)
	assert.Equal(t, "对话记录", d.Stages[0].StageName)

	msgs := d.Stages[0].Messages
	require.Len(t, msgs, 4)

	assert.Equal(t, "assistant", msgs[0].Role)
	assert.Equal(t, 1, msgs[0].Round)
	assert.Equal(t, "你好!今天我们学习一元二次方程。\n你准备好了吗?", msgs[0].Content)

	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "准备好了。", msgs[1].Content)

	// Full-width separators parse identically.
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, 2, msgs[2].Round)
	assert.Equal(t, "我们先从因式分解开始。", msgs[2].Content)
	assert.Equal(t, "user", msgs[3].Role)
}

func TestParseTxt_StepHeaders(t *testing.T) {
	d := ParseTxt(stepHeaderLog)

	assert.Equal(t, "demo-43", d.Metadata.TaskID)
	assert.Equal(t, 2, d.Metadata.TotalRounds)

	require.Len(t, d.Stages, 2)
	assert.Equal(t, "导入", d.Stages[0].StageName)
	assert.Equal(t, "讲解", d.Stages[1].StageName)

	require.Len(t, d.Stages[0].Messages, 2)
	assert.Equal(t, 1, d.Stages[0].Messages[0].Round)

	// Separator lines break a message but are not content.
	require.Len(t, d.Stages[1].Messages, 2)
	assert.Equal(t, "下面进入正题。", d.Stages[1].Messages[0].Content)
	assert.Equal(t, "明白了。", d.Stages[1].Messages[1].Content)
	assert.Equal(t, 2, d.Stages[1].Messages[1].Round)
}

func TestParseTxt_Empty(t *testing.T) {
	d := ParseTxt("")
	assert.Equal(t, 1, d.Metadata.TotalRounds)
	require.Len(t, d.Stages, 1)
	assert.Empty(t, d.Stages[0].Messages)
}

func TestParseJSON(t *testing.T) {
	raw := []byte(`{
		"metadata": {"task_id": "t1", "total_rounds": 3},
		"stages": [
			{"stage_name": "导入", "messages": [
				{"role": "assistant", "content": "你好", "round": 1}
			]}
		]
	}`)
	d, err := ParseJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "t1", d.Metadata.TaskID)
	require.Len(t, d.Stages, 1)
	assert.Equal(t, "导入", d.Stages[0].StageName)

	_, err = ParseJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestFormatForLLM(t *testing.T) {
	d := Data{Stages: []Stage{
		{StageName: "导入", Messages: []Message{
			{Role: "assistant", Content: "你好", Round: 1},
			{Role: "user", Content: "老师好", Round: 1},
		}},
	}}

	out := FormatForLLM(d)
	assert.Contains(t, out, "## 导入")
	assert.Contains(t, out, "**智能体(第1轮):** 你好")
	assert.Contains(t, out, "**学生(第1轮):** 老师好")
}
