// Package backend implements the alternate, non-CLI job runner: jobs
// whose model targets a hosted HTTPS chat-completions API (NVIDIA NIM or
// OpenAI) are streamed directly over HTTP instead of spawning the Claude
// CLI under a PTY (SPEC_FULL.md §4.I).
package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"relaywatch/internal/history"
	"relaywatch/internal/queue"
	"relaywatch/internal/relaypaths"
	"relaywatch/pkg/logger"
)

const defaultNVIDIABaseURL = "https://integrate.api.nvidia.com/v1"

// Config resolves an external model id to an API key, base URL, and
// wire-format model identifier.
type Config struct {
	APIKey  string
	BaseURL string
	ModelID string
}

// ResolveConfig selects NVIDIA vs. OpenAI credentials and endpoint for a
// job's model string, per SPEC_FULL.md §4.I.
func ResolveConfig(model string) Config {
	if strings.HasPrefix(model, "openai/") {
		return Config{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: "https://api.openai.com/v1",
			ModelID: strings.TrimPrefix(model, "openai/"),
		}
	}
	baseURL := os.Getenv("NVIDIA_BASE_URL")
	if baseURL == "" {
		baseURL = defaultNVIDIABaseURL
	}
	return Config{
		APIKey:  os.Getenv("NVIDIA_API_KEY"),
		BaseURL: baseURL,
		ModelID: model,
	}
}

// Runner drives one external-API job to completion.
type Runner struct {
	Queue   *queue.Queue
	History *history.Store
	Client  *http.Client
}

// New returns a Runner using a client with a timeout matching the
// source's 5-minute HTTP read timeout.
func New(q *queue.Queue, hist *history.Store) *Runner {
	return &Runner{Queue: q, History: hist, Client: &http.Client{Timeout: 5 * time.Minute}}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	MaxTokens int          `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// streamEntry mirrors the CLI runner's stream-json line shape so a UI
// polling the stream file sees one consistent wire format regardless of
// which backend produced it.
type streamEntry struct {
	Type    string `json:"type"`
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// Run executes one claimed external-API job: resolves credentials,
// streams the chat-completion response, and commits the result. The
// caller remains responsible for marking the job's project idle.
func (r *Runner) Run(ctx context.Context, claimed *queue.Claimed) error {
	defer claimed.Release()
	job := claimed.Job
	log := logger.Get()

	cfg := ResolveConfig(job.Model)
	if cfg.APIKey == "" {
		return r.commitError(job, fmt.Sprintf("API key not configured for %s", providerName(job.Model)))
	}

	job.Activity = fmt.Sprintf("Calling %s...", cfg.ModelID)
	if err := r.Queue.Save(job); err != nil {
		log.Warn("failed to persist starting activity", "job", job.ID, "error", err)
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:     cfg.ModelID,
		Messages:  []chatMessage{{Role: "user", Content: job.Message}},
		Stream:    true,
		MaxTokens: 8192,
	})
	if err != nil {
		return r.commitError(job, "internal error building request: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return r.commitError(job, "internal error: "+err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return r.commitError(job, "API request failed: "+err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt := readExcerpt(resp, 200)
		return r.commitError(job, fmt.Sprintf("API error: %d - %s", resp.StatusCode, excerpt))
	}

	result, err := r.stream(job, resp)
	if err != nil {
		return r.commitError(job, "API stream error: "+err.Error())
	}

	return r.commitComplete(job, result)
}

func (r *Runner) stream(job *queue.Job, resp *http.Response) (string, error) {
	log := logger.Get()
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var full strings.Builder
	var streamLines []string
	start := time.Now()

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		full.WriteString(content)

		var entry streamEntry
		entry.Type = "assistant"
		entry.Message.Content = []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{{Type: "text", Text: content}}
		encoded, err := json.Marshal(entry)
		if err == nil {
			streamLines = append(streamLines, string(encoded))
			if err := relaypaths.AtomicWriteFile(r.Queue.StreamPath(job.ID), []byte(strings.Join(streamLines, "\n")), 0o644); err != nil {
				log.Warn("failed to write stream file", "job", job.ID, "error", err)
			}
		}

		elapsed := int(time.Since(start).Seconds())
		current, err := r.Queue.Load(job.ID)
		if err == nil {
			current.Activity = fmt.Sprintf("Generating... (%ds)", elapsed)
			if err := r.Queue.Save(current); err != nil {
				log.Warn("failed to update job activity", "job", job.ID, "error", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), err
	}
	return full.String(), nil
}

func (r *Runner) commitError(job *queue.Job, message string) error {
	if err := relaypaths.AtomicWriteFile(r.Queue.ResultPath(job.ID), []byte("Error: "+message), 0o644); err != nil {
		return err
	}
	job.Status = queue.StatusError
	job.Activity = message
	return r.Queue.Save(job)
}

func (r *Runner) commitComplete(job *queue.Job, result string) error {
	if err := relaypaths.AtomicWriteFile(r.Queue.ResultPath(job.ID), []byte(result), 0o644); err != nil {
		return err
	}
	job.Status = queue.StatusCompleted
	job.Activity = "Complete"
	if err := r.Queue.Save(job); err != nil {
		return err
	}
	if job.EffectiveJobType() != queue.JobTypeFormat {
		if err := r.History.Append(job.EffectiveProject(), job.Message, result, time.Now()); err != nil {
			logger.Get().Warn("failed to append history", "job", job.ID, "error", err)
		}
	}
	return nil
}

func providerName(model string) string {
	if strings.HasPrefix(model, "openai/") {
		return "OpenAI"
	}
	return "NVIDIA"
}

func readExcerpt(resp *http.Response, n int) string {
	buf := make([]byte, n)
	read, _ := resp.Body.Read(buf)
	return string(buf[:read])
}
