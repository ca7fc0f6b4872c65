package llm

// ModelInfo describes a selectable model for the settings UI.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AvailableModels is the static list exposed on /api/models.
var AvailableModels = []ModelInfo{
	{ID: "gpt-4o", Name: "GPT-4o", Description: "Most capable"},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Description: "Faster, cost-effective"},
	{ID: "gpt-4.1", Name: "GPT-4.1", Description: "Latest GPT-4 version"},
	{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", Description: "Compact GPT-4.1"},
	{ID: "gpt-4.1-nano", Name: "GPT-4.1 Nano", Description: "Ultra-compact"},
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Description: "Google's flagship"},
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Description: "Fast Gemini"},
	{ID: "claude-sonnet-4.5", Name: "Claude Sonnet 4.5", Description: "Newest Sonnet"},
	{ID: "claude-haiku-4.5", Name: "Claude Haiku 4.5", Description: "Latest Haiku"},
	{ID: "claude-opus-4", Name: "Claude Opus 4", Description: "Most capable Claude"},
	{ID: "grok-4", Name: "Grok-4", Description: "xAI's model"},
}

// modelNameMapping maps frontend model IDs to the names the gateway
// actually expects.
var modelNameMapping = map[string]string{
	"gpt-4.1":           "gpt-4.1",
	"gpt-4.1-mini":      "gpt-4.1-mini",
	"gpt-4.1-nano":      "gpt-4.1-nano",
	"gemini-2.5-pro":    "gemini-2.5-pro",
	"gemini-2.5-flash":  "gemini-2.5-flash",
	"claude-sonnet-4.5": "Claude Sonnet 4.5",
	"claude-haiku-4.5":  "Claude Haiku 4.5",
	"claude-opus-4":     "Claude Opus 4",
	"grok-4":            "grok-4",
}

// ResolveModel applies the name mapping, passing unknown names through.
func ResolveModel(id string) string {
	if mapped, ok := modelNameMapping[id]; ok {
		return mapped
	}
	return id
}
