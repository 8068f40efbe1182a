package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/sketch-arena/internal/metrics"
	"github.com/mauv0809/sketch-arena/internal/scoring"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	DefaultCallTimeout = 20 * time.Second
)

// Client judges battles with the Gemini generateContent API.
type Client struct {
	cfg     Config
	http    *http.Client
	metrics metrics.Metrics
	intN    func(n int) int

	discovery  singleflight.Group
	mu         sync.Mutex
	discovered []string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(j *Client) { j.http = c }
}

// WithIntN replaces the random source used for fallback verdicts.
func WithIntN(intN func(n int) int) Option {
	return func(j *Client) { j.intN = intN }
}

// New creates a judge Client.
func New(cfg Config, m metrics.Metrics, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	j := &Client{
		cfg:     cfg,
		http:    &http.Client{},
		metrics: m,
		intN:    rand.IntN,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Judge returns a verdict for player against opponent. It never fails: when
// no model answers, the outcome is drawn uniformly at random.
func (j *Client) Judge(ctx context.Context, player, opponent Contender) Verdict {
	start := time.Now()
	defer func() { j.metrics.ObserveJudgeDuration(time.Since(start).Seconds()) }()

	if j.cfg.APIKey == "" {
		log.Warn("No judge API key configured, using random verdict")
		return j.fallback(FallbackNoAPIKey, "")
	}

	body, err := json.Marshal(buildRequest(BuildPrompt(player, opponent, j.cfg.Language), player, opponent))
	if err != nil {
		log.Error("Failed to encode judge request", "error", err)
		return j.fallback(FallbackUnavailable, "")
	}

	text, model, err := j.generate(ctx, body)
	if err != nil {
		log.Warn("Judge unavailable, using random verdict", "error", err)
		return j.fallback(FallbackUnavailable, "")
	}

	r, ok := parseReply(text)
	if !ok {
		log.Warn("Unparseable judge reply", "model", model)
		v := j.fallback(FallbackUnparseable, NormalizeReasoning(text))
		v.Model = model
		return v
	}
	outcome, ok := r.outcome()
	if !ok {
		log.Warn("Judge reply without a valid result", "model", model, "result", r.Result, "resultFor", r.ResultFor)
		v := j.fallback(FallbackInvalidResult, NormalizeReasoning(r.reasoning()))
		v.Model = model
		return v
	}
	return Verdict{
		Result:       outcome,
		Reasoning:    NormalizeReasoning(r.reasoning()),
		PointsChange: scoring.Points(outcome),
		Model:        model,
	}
}

func (j *Client) fallback(reason, reasoning string) Verdict {
	j.metrics.IncJudgeFallback(reason)
	outcome := scoring.Outcomes[j.intN(len(scoring.Outcomes))]
	return Verdict{
		Result:       outcome,
		Reasoning:    reasoning,
		PointsChange: scoring.Points(outcome),
		Fallback:     reason,
	}
}

// generate tries the configured models in order. When all of them are
// missing or unreachable it discovers the models available to the key and
// tries those it has not tried yet.
func (j *Client) generate(ctx context.Context, body []byte) (string, string, error) {
	tried := make(map[string]bool, len(j.cfg.Models))
	var lastErr error
	discover := true
	for _, model := range j.cfg.Models {
		tried[model] = true
		text, err := j.call(ctx, model, body)
		if err == nil {
			return text, model, nil
		}
		log.Debug("Judge model failed", "model", model, "error", err)
		lastErr = err
		var ce *callError
		if !errors.As(err, &ce) || !ce.modelMissing() {
			discover = false
		}
	}
	if ctx.Err() != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
	if !discover && lastErr != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
	}

	models, err := j.availableModels(ctx)
	if err != nil {
		return "", "", fmt.Errorf("%w: discovery: %v", ErrUnavailable, err)
	}
	for _, model := range models {
		if tried[model] {
			continue
		}
		tried[model] = true
		text, err := j.call(ctx, model, body)
		if err == nil {
			log.Info("Judge answered by discovered model", "model", model)
			return text, model, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no models available")
	}
	return "", "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (j *Client) call(ctx context.Context, model string, body []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.CallTimeout)
	defer cancel()

	url := j.cfg.BaseURL + "/" + model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &callError{model: model, err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", j.cfg.APIKey)

	resp, err := j.http.Do(req)
	if err != nil {
		return "", &callError{model: model, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return "", &callError{model: model, status: resp.StatusCode, body: string(snippet)}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &callError{model: model, status: resp.StatusCode, err: err, body: "undecodable response"}
	}
	text := out.text()
	if strings.TrimSpace(text) == "" {
		return "", &callError{model: model, status: resp.StatusCode, body: "empty candidate"}
	}
	return text, nil
}

// availableModels lists models supporting generateContent, cheapest first.
// The first successful listing is cached; concurrent callers share one call.
func (j *Client) availableModels(ctx context.Context) ([]string, error) {
	j.mu.Lock()
	cached := j.discovered
	j.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := j.discovery.Do("models", func() (any, error) {
		models, err := j.listModels(ctx)
		if err != nil {
			return nil, err
		}
		j.mu.Lock()
		j.discovered = models
		j.mu.Unlock()
		return models, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (j *Client) listModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.CallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.cfg.BaseURL+"/models?pageSize=1000", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", j.cfg.APIKey)

	resp, err := j.http.Do(req)
	if err != nil {
		return nil, &callError{model: "models", err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, &callError{model: "models", status: resp.StatusCode, body: string(snippet)}
	}

	var out struct {
		Models []struct {
			Name                       string   `json:"name"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	var names []string
	for _, m := range out.Models {
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" && m.Name != "" {
				names = append(names, m.Name)
				break
			}
		}
	}
	return RankModels(names), nil
}

// RankModels orders model ids cheapest first: flash-lite and 8b variants,
// then other flash models, then the rest. Ties keep their input order.
func RankModels(names []string) []string {
	tier := func(name string) int {
		n := strings.ToLower(name)
		switch {
		case strings.Contains(n, "flash-lite"), strings.Contains(n, "8b"):
			return 0
		case strings.Contains(n, "flash"):
			return 1
		}
		return 2
	}
	out := append([]string(nil), names...)
	sort.SliceStable(out, func(a, b int) bool { return tier(out[a]) < tier(out[b]) })
	return out
}
