package evaluate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialeval/internal/llm"
)

func subScore(name string, score, full float64, basis string, issues ...llm.IssueItem) llm.SubDimensionScore {
	return llm.SubDimensionScore{
		SubDimension:  name,
		Score:         score,
		FullScore:     full,
		JudgmentBasis: basis,
		Issues:        issues,
	}
}

func issue(desc string) llm.IssueItem {
	return llm.IssueItem{Description: desc, Severity: llm.SeverityMedium}
}

func TestBuildSummary_IssueSelection(t *testing.T) {
	report := &Report{
		TotalScore: 50,
		FullScore:  100,
		FinalLevel: LevelFail,
		Dimensions: []DimensionScore{
			{
				// 65%: only the first two issues surface.
				Dimension: "流程遵循度", Score: 13, FullScore: 20,
				SubScores: []llm.SubDimensionScore{
					subScore("阶段准入条件", 2, 4, "b", issue("跳过了准入检查"), issue("顺序错乱")),
					subScore("环节内顺序", 3, 4, "b", issue("第三个问题")),
				},
			},
			{
				// 40%: everything surfaces.
				Dimension: "教学策略", Score: 8, FullScore: 20,
				SubScores: []llm.SubDimensionScore{
					subScore("苏格拉底式提问", 1, 5, "b", issue("直接给答案"), issue("缺乏追问")),
					subScore("正向激励", 2, 5, "b", issue("语气生硬")),
				},
			},
			{
				// 90%: contributes nothing.
				Dimension: "交互体验性", Score: 18, FullScore: 20,
				SubScores: []llm.SubDimensionScore{
					subScore("表达自然度", 18, 20, "b", issue("不应出现")),
				},
			},
		},
	}

	BuildSummary(report)

	assert.Contains(t, report.Issues, "【流程遵循度】跳过了准入检查")
	assert.Contains(t, report.Issues, "【流程遵循度】顺序错乱")
	assert.NotContains(t, report.Issues, "【流程遵循度】第三个问题")

	assert.Contains(t, report.Issues, "【教学策略】直接给答案")
	assert.Contains(t, report.Issues, "【教学策略】缺乏追问")
	assert.Contains(t, report.Issues, "【教学策略】语气生硬")

	for _, is := range report.Issues {
		assert.NotContains(t, is, "交互体验性")
	}
}

func TestBuildSummary_SuggestionsWeakestDimensionFirst(t *testing.T) {
	report := &Report{
		Dimensions: []DimensionScore{
			{
				Dimension: "交互体验性", Score: 14, FullScore: 20,
				SubScores: []llm.SubDimensionScore{
					subScore("表达自然度", 2, 4, "回复生硬"),
				},
			},
			{
				Dimension: "教学策略", Score: 6, FullScore: 20,
				SubScores: []llm.SubDimensionScore{
					subScore("苏格拉底式提问", 1, 5, "1. 应多用启发式提问"),
				},
			},
		},
	}

	BuildSummary(report)

	require.Len(t, report.Suggestions, 2)
	// Weakest dimension's suggestion comes first; numbered prefix is
	// stripped from the basis.
	assert.Equal(t, "优化苏格拉底式提问: 应多用启发式提问", report.Suggestions[0])
	assert.Equal(t, "优化表达自然度: 回复生硬", report.Suggestions[1])
}

func TestBuildSummary_SuggestionCapAndTruncation(t *testing.T) {
	longBasis := strings.Repeat("评", 80)
	subs := []llm.SubDimensionScore{
		subScore("子一", 1, 5, longBasis),
		subScore("子二", 1, 5, "b"),
		subScore("子三", 1, 5, "b"),
		subScore("子四", 1, 5, "b"),
	}
	report := &Report{
		Dimensions: []DimensionScore{
			{Dimension: "教学策略", Score: 4, FullScore: 20, SubScores: subs},
		},
	}

	BuildSummary(report)

	require.Len(t, report.Suggestions, 3)
	assert.Equal(t, "优化子一: "+strings.Repeat("评", 50)+"...", report.Suggestions[0])
}

func TestBuildSummary_HighScoresYieldNoSuggestions(t *testing.T) {
	report := &Report{
		Dimensions: []DimensionScore{
			{
				Dimension: "教学策略", Score: 19, FullScore: 20,
				SubScores: []llm.SubDimensionScore{subScore("苏格拉底式提问", 4.5, 5, "很好")},
			},
		},
	}
	BuildSummary(report)
	assert.Empty(t, report.Suggestions)
}

func TestBuildSummary_AnalysisBestAndWorst(t *testing.T) {
	report := &Report{
		TotalScore: 72.5,
		FullScore:  100,
		FinalLevel: LevelPass,
		Dimensions: []DimensionScore{
			{Dimension: "目标达成度", Score: 18, FullScore: 20},
			{Dimension: "流程遵循度", Score: 10, FullScore: 20},
			{Dimension: "教学策略", Score: 15, FullScore: 20},
		},
	}

	BuildSummary(report)

	assert.Equal(t,
		"评测结论: 合格 (72.5/100)\n\n优势: 目标达成度表现最好 (18/20分)\n待改进: 流程遵循度需要重点优化 (10/20分)",
		report.Analysis)
}

func TestBuildSummary_AnalysisTieBreaksToFirst(t *testing.T) {
	report := &Report{
		TotalScore: 40,
		FullScore:  60,
		FinalLevel: LevelPass,
		Dimensions: []DimensionScore{
			{Dimension: "甲", Score: 10, FullScore: 20},
			{Dimension: "乙", Score: 10, FullScore: 20},
			{Dimension: "丙", Score: 20, FullScore: 20},
		},
	}

	BuildSummary(report)

	assert.Contains(t, report.Analysis, "优势: 丙表现最好")
	assert.Contains(t, report.Analysis, "待改进: 甲需要重点优化")
}
