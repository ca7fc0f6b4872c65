// Package dialogue models teaching-agent dialogue transcripts and
// converts the two supported upload formats (structured JSON and plain
// text logs) into an LLM-readable form.
package dialogue

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Message is a single utterance in a transcript.
type Message struct {
	Role    string `json:"role"` // "assistant" or "user"
	Content string `json:"content"`
	Round   int    `json:"round"`
	Stage   string `json:"stage,omitempty"`
}

// Metadata carries transcript-level fields parsed from the log header.
type Metadata struct {
	TaskID       string `json:"task_id"`
	StudentLevel string `json:"student_level,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	TotalRounds  int    `json:"total_rounds"`
}

// Stage groups messages under a named teaching stage.
type Stage struct {
	StageName string    `json:"stage_name"`
	Messages  []Message `json:"messages"`
}

// Data is the canonical transcript structure consumed by the evaluator.
type Data struct {
	Metadata Metadata `json:"metadata"`
	Stages   []Stage  `json:"stages"`
}

// ParseJSON decodes an already-structured transcript upload.
func ParseJSON(raw []byte) (Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("decode dialogue json: %w", err)
	}
	return d, nil
}

var roundPattern = regexp.MustCompile(`第\s*(\d+)\s*轮`)

func isSeparatorLine(line string) bool {
	return strings.HasPrefix(line, "---") || strings.HasPrefix(line, "===")
}

// isStepHeaderLine reports whether a line looks like
// "Step: 导入 | step_id: xxx | 第 2 轮 | 来源: runCard".
func isStepHeaderLine(line string) bool {
	return strings.HasPrefix(line, "Step:") && strings.Contains(line, "|")
}

func parseStepHeader(line string) (stage string, round int) {
	rest := strings.TrimPrefix(line, "Step:")
	if idx := strings.IndexByte(rest, '|'); idx >= 0 {
		rest = rest[:idx]
	}
	stage = strings.TrimSpace(rest)
	if m := roundPattern.FindStringSubmatch(line); m != nil {
		round, _ = strconv.Atoi(m[1])
	}
	return stage, round
}

// splitPrefixed strips a "标签:" or "标签：" prefix and returns the
// remainder.
func splitPrefixed(line, label string) (string, bool) {
	for _, sep := range []string{":", "："} {
		if strings.HasPrefix(line, label+sep) {
			return strings.TrimSpace(strings.TrimPrefix(line, label+sep)), true
		}
	}
	return "", false
}

func isMessageStart(line string) bool {
	for _, p := range []string{"AI:", "AI：", "用户:", "用户："} {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// ParseTxt converts a plain-text dialogue log into Data. Two layouts
// are supported: timestamped round markers ("[2024-01-02 10:00:00] 第 3 轮")
// and "Step:" stage headers. Messages start with "AI:" or "用户:" and may
// span multiple lines until the next marker.
func ParseTxt(content string) Data {
	lines := strings.Split(strings.TrimSpace(content), "\n")

	var meta Metadata
	var messages []Message
	currentRound := 0
	currentStage := ""
	maxRound := 0

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])

		if v, ok := splitPrefixed(line, "日志创建时间"); ok {
			meta.CreatedAt = v
			i++
			continue
		}
		if v, ok := splitPrefixed(line, "task_id"); ok {
			meta.TaskID = v
			i++
			continue
		}
		if v, ok := splitPrefixed(line, "学生档位"); ok {
			meta.StudentLevel = v
			i++
			continue
		}
		if line == "" || isSeparatorLine(line) {
			i++
			continue
		}
		if isStepHeaderLine(line) {
			stage, round := parseStepHeader(line)
			currentStage = stage
			if round > 0 {
				currentRound = round
				if round > maxRound {
					maxRound = round
				}
			}
			i++
			continue
		}
		if strings.HasPrefix(line, "[") && strings.Contains(line, "]") {
			if m := roundPattern.FindStringSubmatch(line); m != nil {
				currentRound, _ = strconv.Atoi(m[1])
				if currentRound > maxRound {
					maxRound = currentRound
				}
			}
			i++
			continue
		}

		role := ""
		var first string
		if v, ok := splitPrefixed(line, "AI"); ok {
			role, first = "assistant", v
		} else if v, ok := splitPrefixed(line, "用户"); ok {
			role, first = "user", v
		}
		if role == "" {
			i++
			continue
		}

		// Collect continuation lines until the next marker.
		contentLines := []string{first}
		i++
		for i < len(lines) {
			next := strings.TrimSpace(lines[i])
			if isMessageStart(next) || isSeparatorLine(next) || isStepHeaderLine(next) ||
				(strings.HasPrefix(next, "[") && strings.Contains(next, "]")) {
				break
			}
			contentLines = append(contentLines, lines[i])
			i++
		}
		full := strings.TrimSpace(strings.Join(contentLines, "\n"))
		if full == "" {
			continue
		}
		round := currentRound
		if round == 0 {
			round = 1
		}
		messages = append(messages, Message{Role: role, Content: full, Round: round, Stage: currentStage})
	}

	if maxRound == 0 {
		maxRound = 1
	}
	meta.TotalRounds = maxRound

	return Data{Metadata: meta, Stages: groupByStage(messages)}
}

// groupByStage buckets messages by stage, preserving first-seen stage
// order. Messages with no stage fall under a generic bucket.
func groupByStage(messages []Message) []Stage {
	const defaultStage = "对话记录"

	var order []string
	byStage := map[string][]Message{}
	for _, msg := range messages {
		name := msg.Stage
		if name == "" {
			name = defaultStage
		}
		if _, ok := byStage[name]; !ok {
			order = append(order, name)
		}
		byStage[name] = append(byStage[name], msg)
	}

	if len(order) == 0 {
		return []Stage{{StageName: defaultStage, Messages: []Message{}}}
	}
	stages := make([]Stage, 0, len(order))
	for _, name := range order {
		stages = append(stages, Stage{StageName: name, Messages: byStage[name]})
	}
	return stages
}

// FormatForLLM renders a transcript as markdown for prompt inclusion.
func FormatForLLM(d Data) string {
	var b strings.Builder
	for _, stage := range d.Stages {
		fmt.Fprintf(&b, "\n## %s\n\n", stage.StageName)
		for _, msg := range stage.Messages {
			role := "学生"
			if msg.Role == "assistant" {
				role = "智能体"
			}
			fmt.Fprintf(&b, "**%s(第%d轮):** %s\n\n", role, msg.Round, msg.Content)
		}
	}
	return b.String()
}
