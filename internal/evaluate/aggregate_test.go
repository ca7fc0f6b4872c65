package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialeval/internal/llm"
	"dialeval/internal/rubric"
)

func fullResults(tasks []rubric.Task, ratio float64) map[string]llm.SubDimensionScore {
	results := make(map[string]llm.SubDimensionScore, len(tasks))
	for _, task := range tasks {
		results[task.Key()] = llm.SubDimensionScore{
			SubDimension:  task.SubDimensionName,
			Score:         task.FullScore * ratio,
			FullScore:     task.FullScore,
			Rating:        "良好",
			JudgmentBasis: "表现稳定",
		}
	}
	return results
}

func defaultSetup() (*rubric.Rubric, rubric.DimensionsConfig, []rubric.Task) {
	r := rubric.Default()
	cfg := rubric.DefaultConfig(r)
	return r, cfg, rubric.BuildTasks(r, cfg, nil)
}

func TestAggregate_ExcellentRun(t *testing.T) {
	r, cfg, tasks := defaultSetup()
	report := Aggregate(r, cfg, tasks, fullResults(tasks, 0.9))

	assert.InDelta(t, 90.0, report.TotalScore, 0.001)
	assert.Equal(t, 100.0, report.FullScore)
	assert.Equal(t, LevelExcellent, report.FinalLevel)
	assert.True(t, report.PassCriteriaMet)
	assert.Empty(t, report.VetoReasons)
	assert.False(t, report.Incomplete)
	assert.Equal(t, 21, report.CompletedTasks)
	assert.Equal(t, 21, report.TotalTasks)

	require.Len(t, report.Dimensions, 5)
	var sum float64
	for _, ds := range report.Dimensions {
		sum += ds.Score
		assert.Equal(t, LevelExcellent, ds.Level)
		assert.NotEmpty(t, ds.Analysis)
	}
	assert.InDelta(t, report.TotalScore, sum, 0.001)
}

func TestAggregate_VetoDominates(t *testing.T) {
	r, cfg, tasks := defaultSetup()
	results := fullResults(tasks, 0.9)

	// Score the veto dimension at 11.0, below its 12-point threshold,
	// while everything else stays excellent.
	results["goal_completion-knowledge_coverage"] = llm.SubDimensionScore{
		SubDimension: "知识点覆盖", Score: 5.5, FullScore: 10, JudgmentBasis: "遗漏要点",
	}
	results["goal_completion-ability_coverage"] = llm.SubDimensionScore{
		SubDimension: "能力培养覆盖", Score: 5.5, FullScore: 10, JudgmentBasis: "未覆盖",
	}

	report := Aggregate(r, cfg, tasks, results)

	require.Len(t, report.VetoReasons, 1)
	assert.Equal(t, "目标达成度得分11.0分,低于12分阈值", report.VetoReasons[0])
	assert.Equal(t, LevelVeto, report.FinalLevel)
	assert.False(t, report.PassCriteriaMet)
	// Total still reflects the arithmetic; only the level is overridden.
	assert.Greater(t, report.TotalScore, 60.0)
}

func TestAggregate_VetoThresholdBoundary(t *testing.T) {
	r, cfg, tasks := defaultSetup()
	results := fullResults(tasks, 0.9)
	results["goal_completion-knowledge_coverage"] = llm.SubDimensionScore{
		SubDimension: "知识点覆盖", Score: 6, FullScore: 10, JudgmentBasis: "基本覆盖",
	}
	results["goal_completion-ability_coverage"] = llm.SubDimensionScore{
		SubDimension: "能力培养覆盖", Score: 6, FullScore: 10, JudgmentBasis: "基本覆盖",
	}

	// Exactly at the threshold is not a veto.
	report := Aggregate(r, cfg, tasks, results)
	assert.Empty(t, report.VetoReasons)
	assert.NotEqual(t, LevelVeto, report.FinalLevel)
}

func TestAggregate_WeightDoesNotScaleTotal(t *testing.T) {
	r, cfg, tasks := defaultSetup()
	setting := cfg["goal_completion"]
	setting.Weight = 0.5
	cfg["goal_completion"] = setting

	// Full marks everywhere must stay full marks: the weight is carried
	// through as metadata but never discounts the total.
	report := Aggregate(r, cfg, tasks, fullResults(tasks, 1.0))

	assert.InDelta(t, 100.0, report.TotalScore, 0.001)
	assert.Equal(t, 100.0, report.FullScore)
	assert.Equal(t, LevelExcellent, report.FinalLevel)
	assert.True(t, report.PassCriteriaMet)

	goal := report.Dimensions[0]
	require.Equal(t, "目标达成度", goal.Dimension)
	assert.Equal(t, 0.5, goal.Weight)
	assert.Equal(t, goal.Score, goal.WeightedScore)
}

func TestAggregate_MissingResultsContributeZero(t *testing.T) {
	r, cfg, tasks := defaultSetup()
	results := fullResults(tasks, 0.8)
	dropped := tasks[len(tasks)-1]
	delete(results, dropped.Key())

	report := Aggregate(r, cfg, tasks, results)

	assert.True(t, report.Incomplete)
	assert.Equal(t, 20, report.CompletedTasks)
	assert.Equal(t, 21, report.TotalTasks)
	assert.InDelta(t, 80.0-dropped.FullScore*0.8, report.TotalScore, 0.001)

	for _, ds := range report.Dimensions {
		if ds.Dimension == dropped.DimensionName {
			assert.Len(t, ds.SubScores, len(rubric.Default().Dimension(dropped.DimensionKey).SubDimensions)-1)
		}
	}
}

func TestAggregate_DimensionAnalysisFormat(t *testing.T) {
	r, cfg, tasks := defaultSetup()
	report := Aggregate(r, cfg, tasks, fullResults(tasks, 0.5))

	goal := report.Dimensions[0]
	assert.Equal(t, "目标达成度", goal.Dimension)
	assert.Contains(t, goal.Analysis, "【知识点覆盖】(5/10分): 表现稳定")
	assert.Contains(t, goal.Analysis, "【能力培养覆盖】(5/10分): 表现稳定")
}

func TestLevelForRatio(t *testing.T) {
	assert.Equal(t, LevelExcellent, levelForRatio(0.95))
	assert.Equal(t, LevelExcellent, levelForRatio(0.9))
	assert.Equal(t, LevelGood, levelForRatio(0.89))
	assert.Equal(t, LevelGood, levelForRatio(0.75))
	assert.Equal(t, LevelPass, levelForRatio(0.74))
	assert.Equal(t, LevelPass, levelForRatio(0.6))
	assert.Equal(t, LevelFail, levelForRatio(0.59))
	assert.Equal(t, LevelFail, levelForRatio(0))
}

func TestAggregate_PassBoundary(t *testing.T) {
	r, cfg, tasks := defaultSetup()

	report := Aggregate(r, cfg, tasks, fullResults(tasks, 0.6))
	assert.True(t, report.PassCriteriaMet)
	assert.Equal(t, LevelPass, report.FinalLevel)

	// Below the pass ratio but with the veto dimension at its threshold,
	// so the failure comes from the total alone.
	results := fullResults(tasks, 0.55)
	results["goal_completion-knowledge_coverage"] = llm.SubDimensionScore{
		SubDimension: "知识点覆盖", Score: 6, FullScore: 10, JudgmentBasis: "基本覆盖",
	}
	results["goal_completion-ability_coverage"] = llm.SubDimensionScore{
		SubDimension: "能力培养覆盖", Score: 6, FullScore: 10, JudgmentBasis: "基本覆盖",
	}
	report = Aggregate(r, cfg, tasks, results)
	assert.False(t, report.PassCriteriaMet)
	assert.Equal(t, LevelFail, report.FinalLevel)
}
