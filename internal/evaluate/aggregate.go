package evaluate

import (
	"fmt"
	"strings"

	"dialeval/internal/llm"
	"dialeval/internal/rubric"
)

// Final levels, ordered from best to worst.
const (
	LevelExcellent = "优秀"
	LevelGood      = "良好"
	LevelPass      = "合格"
	LevelFail      = "不合格"
	LevelVeto      = "一票否决"
)

// passRatio is the minimum score ratio for pass_criteria_met.
const passRatio = 0.6

// DimensionScore is the aggregated result for one rubric dimension.
type DimensionScore struct {
	Dimension     string                  `json:"dimension"`
	Score         float64                 `json:"score"`
	FullScore     float64                 `json:"full_score"`
	Weight        float64                 `json:"weight"`
	Level         string                  `json:"level"`
	Analysis      string                  `json:"analysis"`
	SubScores     []llm.SubDimensionScore `json:"sub_scores"`
	IsVeto        bool                    `json:"is_veto"`
	WeightedScore float64                 `json:"weighted_score"`
}

// Report is the final evaluation result streamed to the client and
// persisted to history.
type Report struct {
	TotalScore      float64          `json:"total_score"`
	FullScore       float64          `json:"full_score"`
	Dimensions      []DimensionScore `json:"dimensions"`
	Analysis        string           `json:"analysis"`
	Issues          []string         `json:"issues"`
	Suggestions     []string         `json:"suggestions"`
	FinalLevel      string           `json:"final_level"`
	PassCriteriaMet bool             `json:"pass_criteria_met"`
	VetoReasons     []string         `json:"veto_reasons"`
	HistoryID       string           `json:"history_id,omitempty"`
	Incomplete      bool             `json:"incomplete,omitempty"`
	CompletedTasks  int              `json:"completed_tasks"`
	TotalTasks      int              `json:"total_tasks"`
}

// levelForRatio maps a score ratio to a level name.
func levelForRatio(ratio float64) string {
	switch {
	case ratio >= 0.9:
		return LevelExcellent
	case ratio >= 0.75:
		return LevelGood
	case ratio >= 0.6:
		return LevelPass
	default:
		return LevelFail
	}
}

// Aggregate rolls per-sub-dimension results up into dimension scores and
// the final report. Tasks missing from results (abandoned after retries)
// contribute zero. Veto dominates: a veto dimension below its threshold
// forces the final level regardless of the total.
func Aggregate(r *rubric.Rubric, cfg rubric.DimensionsConfig, tasks []rubric.Task, results map[string]llm.SubDimensionScore) *Report {
	report := &Report{
		Dimensions:     []DimensionScore{},
		Issues:         []string{},
		Suggestions:    []string{},
		VetoReasons:    []string{},
		CompletedTasks: len(results),
		TotalTasks:     len(tasks),
		Incomplete:     len(results) < len(tasks),
	}

	// Group tasks by dimension, preserving rubric order.
	byDimension := make(map[string][]rubric.Task, len(r.Dimensions))
	for _, t := range tasks {
		byDimension[t.DimensionKey] = append(byDimension[t.DimensionKey], t)
	}

	for i := range r.Dimensions {
		dim := &r.Dimensions[i]
		dimTasks := byDimension[dim.Key]
		if len(dimTasks) == 0 {
			continue
		}

		ds := DimensionScore{
			Dimension: dim.Name,
			FullScore: cfg.DimensionFullScore(dim),
			Weight:    dimensionWeight(cfg, dim),
			IsVeto:    dim.IsVeto,
			SubScores: make([]llm.SubDimensionScore, 0, len(dimTasks)),
		}

		var analyses []string
		for _, t := range dimTasks {
			score, ok := results[t.Key()]
			if !ok {
				continue
			}
			ds.Score += score.Score
			ds.SubScores = append(ds.SubScores, score)
			analyses = append(analyses, fmt.Sprintf("【%s】(%g/%g分): %s",
				score.SubDimension, score.Score, score.FullScore, score.JudgmentBasis))
		}
		ds.Analysis = strings.Join(analyses, "\n\n")
		// The weight is display metadata; the total is the plain sum of
		// dimension scores against the unweighted full score.
		ds.WeightedScore = ds.Score
		if ds.FullScore > 0 {
			ds.Level = levelForRatio(ds.Score / ds.FullScore)
		} else {
			ds.Level = LevelFail
		}

		if dim.IsVeto && ds.Score < dim.VetoThreshold {
			report.VetoReasons = append(report.VetoReasons,
				fmt.Sprintf("%s得分%.1f分,低于%g分阈值", dim.Name, ds.Score, dim.VetoThreshold))
		}

		report.TotalScore += ds.Score
		report.Dimensions = append(report.Dimensions, ds)
	}

	report.FullScore = cfg.TotalFullScore(r)

	ratio := 0.0
	if report.FullScore > 0 {
		ratio = report.TotalScore / report.FullScore
	}
	if len(report.VetoReasons) > 0 {
		report.FinalLevel = LevelVeto
	} else {
		report.FinalLevel = levelForRatio(ratio)
	}
	report.PassCriteriaMet = ratio >= passRatio && len(report.VetoReasons) == 0

	return report
}

// dimensionWeight returns the template's weight override for a
// dimension, defaulting to the rubric's static weight.
func dimensionWeight(cfg rubric.DimensionsConfig, dim *rubric.Dimension) float64 {
	if setting, ok := cfg[dim.Key]; ok && setting.Weight > 0 {
		return setting.Weight
	}
	return dim.Weight
}
