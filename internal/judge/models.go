package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ModelStatus reports the outcome of a model health check. A model can be
// pulled but still unavailable, for example while it is loading into memory.
type ModelStatus struct {
	Model          string
	Pulled         bool
	TestGeneration bool
	Available      bool
	Err            error
}

// ListOllamaModels returns the model names Ollama reports at host.
func ListOllamaModels(ctx context.Context, host string) ([]string, error) {
	url := fmt.Sprintf("%s/api/tags", host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating tags request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing ollama models: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading tags response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags response: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// CheckModel verifies that model is pulled on the Ollama host and answers a
// short test generation. Run this before a long batch so a missing or stuck
// model fails fast instead of burning the first timeout of the run.
func CheckModel(ctx context.Context, host, model string) ModelStatus {
	status := ModelStatus{Model: model}

	names, err := ListOllamaModels(ctx, host)
	if err != nil {
		status.Err = err
		return status
	}
	status.Pulled = modelPulled(names, model)
	if !status.Pulled {
		status.Err = fmt.Errorf("model %q is not pulled, run: ollama pull %s", model, model)
		return status
	}

	genCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	p := NewOllamaProvider(host, model)
	resp, err := p.Complete(genCtx, CompletionRequest{
		Messages:  []Message{{Role: RoleUser, Content: "Say OK"}},
		MaxTokens: 16,
	})
	if err != nil {
		status.Err = fmt.Errorf("test generation failed: %w", err)
		return status
	}
	if strings.TrimSpace(resp.Content) == "" {
		status.Err = fmt.Errorf("test generation returned an empty reply")
		return status
	}

	status.TestGeneration = true
	status.Available = true
	return status
}

// modelPulled matches model against the pulled names, tolerating tag
// suffixes: "llama3" matches "llama3:latest".
func modelPulled(names []string, model string) bool {
	for _, n := range names {
		if n == model {
			return true
		}
	}
	base, _, _ := strings.Cut(model, ":")
	for _, n := range names {
		if n == base || strings.HasPrefix(n, base+":") {
			return true
		}
	}
	return false
}
