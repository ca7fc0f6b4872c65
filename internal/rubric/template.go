package rubric

// SubDimensionSetting is a template's per-sub-dimension override.
type SubDimensionSetting struct {
	Enabled   bool    `json:"enabled"`
	FullScore float64 `json:"fullScore"`
}

// DimensionSetting is a template's per-dimension configuration.
type DimensionSetting struct {
	Enabled       bool                           `json:"enabled"`
	Weight        float64                        `json:"weight"`
	SubDimensions map[string]SubDimensionSetting `json:"subDimensions"`
}

// DimensionsConfig is the dimensions payload stored on an evaluation
// template: which dimensions and sub-dimensions are enabled, and with
// what full scores.
type DimensionsConfig map[string]DimensionSetting

// DefaultConfig returns a config enabling every rubric dimension and
// sub-dimension at its static full score.
func DefaultConfig(r *Rubric) DimensionsConfig {
	cfg := make(DimensionsConfig, len(r.Dimensions))
	for _, dim := range r.Dimensions {
		subs := make(map[string]SubDimensionSetting, len(dim.SubDimensions))
		for _, sub := range dim.SubDimensions {
			subs[sub.Key] = SubDimensionSetting{Enabled: true, FullScore: sub.FullScore}
		}
		cfg[dim.Key] = DimensionSetting{Enabled: true, Weight: dim.Weight, SubDimensions: subs}
	}
	return cfg
}

// TotalFullScore sums the full scores of all enabled sub-dimensions,
// honoring template overrides. This is the denominator for the final
// level thresholds.
func (c DimensionsConfig) TotalFullScore(r *Rubric) float64 {
	var total float64
	for _, dim := range r.Dimensions {
		total += c.DimensionFullScore(&dim)
	}
	return total
}

// DimensionFullScore sums the enabled sub-dimension full scores of one
// dimension, honoring template overrides. Returns 0 when the dimension
// is disabled or absent from the config.
func (c DimensionsConfig) DimensionFullScore(dim *Dimension) float64 {
	setting, ok := c[dim.Key]
	if !ok || !setting.Enabled {
		return 0
	}
	var total float64
	for _, sub := range dim.SubDimensions {
		subSetting, ok := setting.SubDimensions[sub.Key]
		if !ok || !subSetting.Enabled {
			continue
		}
		if subSetting.FullScore > 0 {
			total += subSetting.FullScore
		} else {
			total += sub.FullScore
		}
	}
	return total
}
