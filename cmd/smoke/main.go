package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

const sampleTeacherDoc = `# 教学目标

本课程帮助学生掌握一元二次方程的求解方法。

## 知识点
- 配方法
- 求根公式
- 判别式

## 能力培养
- 独立推导求根公式
- 将实际问题建模为方程
`

const sampleDialogue = `日志创建时间: 2026-01-15 10:00:00
task_id: smoke-demo
学生档位: 中等

Step: 概念引入 | step_id: s1 | 第 1 轮 | 来源: runCard
[2026-01-15 10:01:00] 第 1 轮
AI: 你好!今天我们来学习一元二次方程。你还记得一元一次方程长什么样吗?
用户: 记得,就是 ax + b = 0 这种。

[2026-01-15 10:03:00] 第 2 轮
AI: 很好!那一元二次方程就是最高次项为二次的方程,比如 x² - 5x + 6 = 0。你能猜猜它有几个解吗?
用户: 两个?

Step: 方法讲解 | step_id: s2 | 第 3 轮 | 来源: runCard
[2026-01-15 10:05:00] 第 3 轮
AI: 正确!我们先用因式分解法试试。x² - 5x + 6 可以分解成 (x-2)(x-3),所以解是 x=2 或 x=3。
用户: 明白了,那如果分解不出来怎么办?
`

type frame struct {
	Type         string         `json:"type"`
	Total        int            `json:"total"`
	Current      int            `json:"current"`
	Dimension    string         `json:"dimension"`
	SubDimension string         `json:"sub_dimension"`
	Score        float64        `json:"score"`
	Message      string         `json:"message"`
	Report       map[string]any `json:"report"`
}

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8000")
	token := envOr("API_TOKEN", "dev-secret-token")

	baseFlag := flag.String("base", base, "API base URL (e.g., http://localhost:8000)")
	tokenFlag := flag.String("token", token, "API token")
	apiKey := flag.String("llm-key", os.Getenv("LLM_API_KEY"), "LLM API key passed through to the evaluation")
	apiURL := flag.String("llm-url", os.Getenv("LLM_BASE_URL"), "LLM base URL override")
	model := flag.String("model", "gpt-4o", "model to evaluate with")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	// 1) Stream a full evaluation
	historyID := runEvaluation(ctx, *baseFlag, *tokenFlag, *apiKey, *apiURL, *model)

	// 2) Fetch it back from history
	if historyID != "" {
		var entry map[string]any
		if err := getJSON(ctx, *baseFlag+"/api/history/"+historyID, *tokenFlag, &entry); err != nil {
			fatalf("get history: %v", err)
		}
		fmt.Printf("✅ History entry present: id=%s level=%v\n", historyID, entry["final_level"])

		// 3) Share it and read back without auth
		var share map[string]string
		if err := postJSON(ctx, *baseFlag+"/api/history/"+historyID+"/share", *tokenFlag, map[string]any{}, &share); err != nil {
			fatalf("create share: %v", err)
		}
		var shared map[string]any
		if err := getJSON(ctx, *baseFlag+"/api/shared/"+share["token"], "", &shared); err != nil {
			fatalf("get shared: %v", err)
		}
		fmt.Println("✅ Share link round trip OK")
	}

	fmt.Println("🎉 Smoke run OK")
}

func runEvaluation(ctx context.Context, base, token, apiKey, apiURL, model string) string {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	addFile(mw, "teacher_doc", "teacher.md", sampleTeacherDoc)
	addFile(mw, "dialogue_record", "dialogue.txt", sampleDialogue)
	_ = mw.WriteField("model", model)
	if apiKey != "" {
		_ = mw.WriteField("api_key", apiKey)
	}
	if apiURL != "" {
		_ = mw.WriteField("api_url", apiURL)
	}
	_ = mw.Close()

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/evaluate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("evaluate: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		b, _ := io.ReadAll(res.Body)
		fatalf("evaluate -> %d: %s", res.StatusCode, string(b))
	}

	var historyID string
	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var f frame
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			fmt.Printf("⚠️  bad frame: %s\n", payload)
			continue
		}
		switch f.Type {
		case "start":
			fmt.Printf("▶️  %d tasks\n", f.Total)
		case "progress":
			fmt.Printf("  [%d/%d] %s / %s\n", f.Current, f.Total, f.Dimension, f.SubDimension)
		case "dimension_complete":
			fmt.Printf("✅ %s: %.1f分\n", f.Dimension, f.Score)
		case "complete":
			fmt.Printf("🎯 总分 %v, 评级 %v\n", f.Report["total_score"], f.Report["final_level"])
			if id, ok := f.Report["history_id"].(string); ok {
				historyID = id
			}
		case "error":
			fatalf("stream error: %s", f.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		fatalf("read stream: %v", err)
	}
	return historyID
}

// --- helpers ---

func addFile(mw *multipart.Writer, field, name, content string) {
	w, err := mw.CreateFormFile(field, name)
	if err != nil {
		fatalf("form file: %v", err)
	}
	_, _ = io.WriteString(w, content)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func postJSON(ctx context.Context, url, bearer string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("POST %s -> %d: %s", url, res.StatusCode, string(raw))
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func getJSON(ctx context.Context, url, bearer string, out any) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("GET %s -> %d: %s", url, res.StatusCode, string(raw))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func fatalf(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
