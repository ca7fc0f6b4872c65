package llm

import (
	"fmt"
	"strings"
)

// PromptInput carries the documents included in every scoring prompt.
type PromptInput struct {
	TeacherDoc     string
	DialogueText   string
	WorkflowConfig string
}

// BuildSubDimensionPrompt renders the scoring prompt for one
// sub-dimension. The full score is stated explicitly so templates with
// customized scores are judged against the right scale.
func BuildSubDimensionPrompt(dimensionName, subDimensionName string, fullScore float64, in PromptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "请针对「%s」维度下的「%s」子维度,评估以下教学智能体对话记录。\n\n", dimensionName, subDimensionName)
	fmt.Fprintf(&b, "该子维度满分为 %g 分。请依据教师指导文档判断智能体的表现,给出 0 到 %g 之间的分数。\n\n", fullScore, fullScore)

	b.WriteString("# 教师指导文档\n\n")
	b.WriteString(in.TeacherDoc)
	b.WriteString("\n\n")

	if in.WorkflowConfig != "" {
		b.WriteString("# 工作流配置\n\n")
		b.WriteString(in.WorkflowConfig)
		b.WriteString("\n\n")
	}

	b.WriteString("# 对话记录\n\n")
	b.WriteString(in.DialogueText)
	b.WriteString("\n\n")

	b.WriteString("# 输出要求\n\n")
	b.WriteString("只输出一个JSON对象,不要输出任何其他文字、解释或markdown标记。格式如下:\n\n")
	fmt.Fprintf(&b, `{
  "sub_dimension": "%s",
  "score": <0到%g之间的数字>,
  "full_score": %g,
  "rating": "<优秀|良好|合格|不足|较差>",
  "score_range": "<该评级对应的分数区间>",
  "judgment_basis": "<评分依据,引用对话中的具体表现>",
  "issues": [
    {"description": "<问题描述>", "location": "<出现位置>", "quote": "<原文引用>", "severity": "<high|medium|low>", "impact": "<影响>"}
  ],
  "highlights": [
    {"description": "<亮点描述>", "location": "<出现位置>", "quote": "<原文引用>"}
  ]
}
`, subDimensionName, fullScore, fullScore)

	return b.String()
}
