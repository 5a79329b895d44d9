package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/tasktide/conflict-engine/internal/config"
	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/enrichment"
)

// promptTemplateText asks the model for one short rationale per candidate,
// as a JSON object keyed by resolution type, so the response can be parsed
// without free-text scraping.
const promptTemplateText = `You are assisting a project scheduling tool.
A {{.ConflictType}} conflict (severity: {{.Severity}}) was detected.
Evidence (JSON): {{.Evidence}}

For each proposed resolution below, write one concise sentence (max 30 words)
explaining to a project manager why it would help. Mention concrete numbers
from the evidence where useful.

Candidates:
{{range .Candidates}}- {{.Type}}: params {{.Params}}
{{end}}
Respond with only a JSON object of this exact shape, no prose around it:
{"rationales": {"<resolution type>": "<sentence>", ...}}`

// responseSchema is the shape the model is instructed to reply with.
type responseSchema struct {
	Rationales map[string]string `json:"rationales"`
}

// promptData is the template input for one enrichment request.
type promptData struct {
	ConflictType string
	Severity     string
	Evidence     string
	Candidates   []promptCandidate
}

type promptCandidate struct {
	Type   string
	Params string
}

// Enricher implements enrichment.Enricher against the Gemini API.
type Enricher struct {
	logger         *slog.Logger
	config         config.LLMConfig
	promptTemplate *template.Template
	client         *genai.Client
	model          string
}

// NewEnricher creates an Enricher from the LLM configuration.
// Returns enrichment.ErrInvalidConfig when required settings are missing.
func NewEnricher(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Enricher, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", enrichment.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", enrichment.ErrInvalidConfig)
	}

	promptTemplate, err := template.New("rationale").Parse(promptTemplateText)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", enrichment.ErrInvalidConfig, err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", enrichment.ErrInvalidConfig, err)
	}

	return &Enricher{
		logger:         logger.With(slog.String("component", "gemini_enricher")),
		config:         cfg,
		promptTemplate: promptTemplate,
		client:         client,
		model:          cfg.ModelName,
	}, nil
}

// EnrichRationales implements enrichment.Enricher.
func (e *Enricher) EnrichRationales(
	ctx context.Context,
	conflict *domain.Conflict,
	candidates []enrichment.Candidate,
) (map[domain.ResolutionType]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt, err := e.buildPrompt(conflict, candidates)
	if err != nil {
		return nil, err
	}

	response, err := e.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return parseRationales(response)
}

// buildPrompt renders the prompt template over the conflict and candidates.
func (e *Enricher) buildPrompt(conflict *domain.Conflict, candidates []enrichment.Candidate) (string, error) {
	data := promptData{
		ConflictType: string(conflict.Type),
		Severity:     string(conflict.Severity),
		Evidence:     string(conflict.Evidence),
	}
	for _, c := range candidates {
		params := "{}"
		if len(c.Params) > 0 {
			params = string(c.Params)
		}
		data.Candidates = append(data.Candidates, promptCandidate{
			Type:   string(c.Type),
			Params: params,
		})
	}

	var buf bytes.Buffer
	if err := e.promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// callWithRetry calls the Gemini API with exponential backoff and jitter for
// transient errors. Permanent errors (safety blocks, malformed responses)
// return immediately.
func (e *Enricher) callWithRetry(ctx context.Context, prompt string) (*responseSchema, error) {
	maxRetries := e.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelaySeconds := e.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		response, transient, err := e.callOnce(ctx, prompt)
		if err == nil {
			return response, nil
		}

		e.logger.WarnContext(ctx, "enrichment call failed",
			slog.Int("attempt", attempt+1),
			slog.Bool("transient", transient),
			slog.String("error", err.Error()))

		if !transient || attempt >= maxRetries {
			return nil, err
		}

		// delay = baseDelay * 2^attempt * jitter in [0.5, 1.0)
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoffSeconds * (0.5 + rng.Float64()*0.5) * float64(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", enrichment.ErrEnrichmentTimeout, ctx.Err())
		}
	}
}

// callOnce performs one API round trip. The transient flag reports whether
// a failure is worth retrying.
func (e *Enricher) callOnce(ctx context.Context, prompt string) (response *responseSchema, transient bool, err error) {
	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, false, fmt.Errorf("%w: %v", enrichment.ErrEnrichmentTimeout, err)
		}
		return nil, true, fmt.Errorf("%w: %v", enrichment.ErrEnrichmentFailed, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, false, fmt.Errorf("%w: empty response", enrichment.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, false, fmt.Errorf("%w: content blocked by safety filters", enrichment.ErrInvalidResponse)
	}

	text := resp.Text()
	var parsed responseSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false, fmt.Errorf("%w: failed to parse JSON response: %v", enrichment.ErrInvalidResponse, err)
	}
	return &parsed, false, nil
}

// parseRationales converts the raw response map to typed resolution keys,
// dropping unknown types and empty sentences. The caller keeps its fallback
// text for anything dropped.
func parseRationales(response *responseSchema) (map[domain.ResolutionType]string, error) {
	if response == nil || len(response.Rationales) == 0 {
		return nil, fmt.Errorf("%w: no rationales in response", enrichment.ErrInvalidResponse)
	}

	out := make(map[domain.ResolutionType]string, len(response.Rationales))
	for key, sentence := range response.Rationales {
		rtype := domain.ResolutionType(key)
		if !rtype.IsValid() || sentence == "" {
			continue
		}
		out[rtype] = sentence
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no usable rationales in response", enrichment.ErrInvalidResponse)
	}
	return out, nil
}
