// Package rubric defines the static evaluation rubric, per-template
// dimension settings, and the expansion of a template into scoring tasks.
package rubric

// SubDimension is one independently scored criterion within a dimension.
type SubDimension struct {
	Key       string
	Name      string
	FullScore float64
}

// Dimension is a top-level rubric category.
type Dimension struct {
	Key         string
	Name        string
	Description string
	Weight      float64
	FullScore   float64
	IsVeto      bool
	// VetoThreshold is an absolute cutoff against this dimension's
	// score. It does not scale when a template customizes sub-dimension
	// full scores; see DESIGN.md.
	VetoThreshold float64
	IsBonus       bool
	SubDimensions []SubDimension
}

// Rubric is the immutable, ordered set of dimensions. It is constructed
// once at startup and passed explicitly to the task builder and
// aggregator.
type Rubric struct {
	Dimensions []Dimension
}

// Dimension returns the dimension with the given key, or nil.
func (r *Rubric) Dimension(key string) *Dimension {
	for i := range r.Dimensions {
		if r.Dimensions[i].Key == key {
			return &r.Dimensions[i]
		}
	}
	return nil
}

// SubDimension returns the sub-dimension with the given key, or nil.
func (d *Dimension) SubDimension(key string) *SubDimension {
	for i := range d.SubDimensions {
		if d.SubDimensions[i].Key == key {
			return &d.SubDimensions[i]
		}
	}
	return nil
}

// Default returns the built-in teaching-agent rubric: 5 dimensions,
// 21 sub-dimensions, 100 points total.
func Default() *Rubric {
	return &Rubric{Dimensions: []Dimension{
		{
			Key:           "goal_completion",
			Name:          "目标达成度",
			Description:   "评估知识点和能力培养目标的覆盖程度",
			Weight:        1.0,
			FullScore:     20,
			IsVeto:        true,
			VetoThreshold: 12,
			SubDimensions: []SubDimension{
				{Key: "knowledge_coverage", Name: "知识点覆盖", FullScore: 10},
				{Key: "ability_coverage", Name: "能力培养覆盖", FullScore: 10},
			},
		},
		{
			Key:         "workflow_adherence",
			Name:        "流程遵循度",
			Description: "评估教学流程的规范性和逻辑性",
			Weight:      1.0,
			FullScore:   20,
			SubDimensions: []SubDimension{
				{Key: "entry_criteria", Name: "阶段准入条件", FullScore: 4},
				{Key: "internal_sequence", Name: "环节内顺序", FullScore: 4},
				{Key: "global_stage_flow", Name: "全局阶段流转", FullScore: 4},
				{Key: "exit_criteria", Name: "阶段退出条件", FullScore: 4},
				{Key: "nonlinear_navigation", Name: "非线性跳转处理", FullScore: 4},
			},
		},
		{
			Key:         "interaction_experience",
			Name:        "交互体验性",
			Description: "评估对话的自然度和用户体验",
			Weight:      1.0,
			FullScore:   20,
			SubDimensions: []SubDimension{
				{Key: "persona_stylization", Name: "人设与风格化", FullScore: 4},
				{Key: "naturalness", Name: "表达自然度", FullScore: 4},
				{Key: "contextual_coherence", Name: "上下文连贯性", FullScore: 4},
				{Key: "loop_stasis", Name: "循环与停滞控制", FullScore: 4},
				{Key: "conciseness", Name: "表达简洁度", FullScore: 4},
			},
		},
		{
			Key:         "accuracy_boundaries",
			Name:        "幻觉与边界",
			Description: "评估事实准确性和安全边界控制",
			Weight:      1.0,
			FullScore:   20,
			SubDimensions: []SubDimension{
				{Key: "factuality", Name: "事实准确性", FullScore: 5},
				{Key: "logical_consistency", Name: "逻辑一致性", FullScore: 5},
				{Key: "admittance_ignorance", Name: "承认知识边界", FullScore: 3},
				{Key: "safety_guardrails", Name: "安全护栏", FullScore: 3},
				{Key: "distraction_resistance", Name: "抗干扰能力", FullScore: 4},
			},
		},
		{
			Key:         "teaching_strategy",
			Name:        "教学策略",
			Description: "评估教学方法和引导技巧",
			Weight:      1.0,
			FullScore:   20,
			SubDimensions: []SubDimension{
				{Key: "socratic_frequency", Name: "苏格拉底式提问", FullScore: 5},
				{Key: "positive_reinforcement", Name: "正向激励", FullScore: 5},
				{Key: "correction_pathway", Name: "纠错路径", FullScore: 5},
				{Key: "deep_probing", Name: "深度追问", FullScore: 5},
			},
		},
	}}
}
