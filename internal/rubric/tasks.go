package rubric

import "log/slog"

// Task is one unit of scheduled work: evaluating a single sub-dimension.
type Task struct {
	DimensionKey     string
	SubDimensionKey  string
	DimensionName    string
	SubDimensionName string
	FullScore        float64
}

// Key identifies a task within a run's result map.
func (t Task) Key() string {
	return t.DimensionKey + "-" + t.SubDimensionKey
}

// BuildTasks flattens the enabled dimension/sub-dimension pairs of a
// template into an ordered task list. Order follows the static rubric's
// declaration order, not the template map. Sub-dimensions enabled in
// the template but unknown to the rubric (stale templates) are skipped;
// there is no prompt or display name to score them with.
func BuildTasks(r *Rubric, cfg DimensionsConfig, logger *slog.Logger) []Task {
	if logger == nil {
		logger = slog.Default()
	}

	var tasks []Task
	for _, dim := range r.Dimensions {
		setting, ok := cfg[dim.Key]
		if !ok || !setting.Enabled {
			continue
		}
		for _, sub := range dim.SubDimensions {
			subSetting, ok := setting.SubDimensions[sub.Key]
			if !ok || !subSetting.Enabled {
				continue
			}
			fullScore := sub.FullScore
			if subSetting.FullScore > 0 {
				fullScore = subSetting.FullScore
			}
			tasks = append(tasks, Task{
				DimensionKey:     dim.Key,
				SubDimensionKey:  sub.Key,
				DimensionName:    dim.Name,
				SubDimensionName: sub.Name,
				FullScore:        fullScore,
			})
		}
		for key := range setting.SubDimensions {
			if dim.SubDimension(key) == nil {
				logger.Warn("template references unknown sub-dimension, skipping",
					"dimension", dim.Key, "sub_dimension", key)
			}
		}
	}
	for key := range cfg {
		if r.Dimension(key) == nil {
			logger.Warn("template references unknown dimension, skipping", "dimension", key)
		}
	}
	return tasks
}
