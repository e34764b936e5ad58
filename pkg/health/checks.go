// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CheckFunc は1つのヘルスチェック（ok と説明を返す）
type CheckFunc func() (bool, string)

// Check は名前付きのヘルスチェック
type Check struct {
	Name string
	Fn   CheckFunc
}

// Result はチェック結果
type Result struct {
	Name    string
	OK      bool
	Message string
}

// RunAll は全チェックを順に実行し、全て成功したかを返す
func RunAll(checks []Check) ([]Result, bool) {
	results := make([]Result, 0, len(checks))
	allOK := true
	for _, c := range checks {
		ok, msg := c.Fn()
		if !ok {
			allOK = false
		}
		results = append(results, Result{Name: c.Name, OK: ok, Message: msg})
	}
	return results, allOK
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

func tagsURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/api/tags"
}

// OllamaCheck はOllamaサーバーへの到達性を確認
func OllamaCheck(baseURL string, timeout time.Duration) CheckFunc {
	client := &http.Client{Timeout: timeout}
	return func() (bool, string) {
		resp, err := client.Get(tagsURL(baseURL))
		if err != nil {
			return false, fmt.Sprintf("unreachable: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false, fmt.Sprintf("status %d", resp.StatusCode)
		}
		return true, "ok"
	}
}

// OllamaModelCheck は必要なモデルがpull済みかを確認
// タグなしの名前（mistral）は :latest と同一視する
func OllamaModelCheck(baseURL string, timeout time.Duration, model string) CheckFunc {
	client := &http.Client{Timeout: timeout}
	want := normalizeModel(model)

	return func() (bool, string) {
		resp, err := client.Get(tagsURL(baseURL))
		if err != nil {
			return false, fmt.Sprintf("unreachable: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false, fmt.Sprintf("status %d", resp.StatusCode)
		}

		var tags ollamaTagsResponse
		if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
			return false, fmt.Sprintf("decode error: %v", err)
		}

		for _, m := range tags.Models {
			if normalizeModel(m.Name) == want || normalizeModel(m.Model) == want {
				return true, fmt.Sprintf("model %s available", model)
			}
		}
		return false, fmt.Sprintf("model %s not found (run: ollama pull %s)", model, model)
	}
}

func normalizeModel(name string) string {
	if name == "" {
		return ""
	}
	if !strings.Contains(name, ":") {
		return name + ":latest"
	}
	return name
}
