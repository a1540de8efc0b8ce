package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/fluentlabs/lernplan/internal/models"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIProvider implements the Provider interface for one capability
// using OpenAI's chat completions API.
type OpenAIProvider struct {
	client     openai.Client
	model      string
	capability models.Capability
	logger     *zap.Logger
	debugMode  bool
}

// NewOpenAIProvider creates a new OpenAI-backed provider for one capability
func NewOpenAIProvider(apiKey, baseURL, model string, capability models.Capability, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:     client,
		model:      model,
		capability: capability,
		logger:     logger,
		debugMode:  debugMode,
	}
}

// Name identifies this backend
func (p *OpenAIProvider) Name() string { return "openai" }

// Capability reports the capability this provider serves
func (p *OpenAIProvider) Capability() models.Capability { return p.capability }

// Generate produces a content block for the request
func (p *OpenAIProvider) Generate(ctx context.Context, req *models.GenerationRequest) (*models.ContentBlock, error) {
	if req.Topic.Capability != p.capability {
		return nil, fmt.Errorf("provider serves %s, request is for %s", p.capability, req.Topic.Capability)
	}

	prompt := p.buildPrompt(req)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt(p.capability)),
		openai.UserMessage(prompt),
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("capability", string(p.capability)),
			zap.String("topic", req.Topic.Name),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", SanitizePrompt(prompt, true)),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("capability", string(p.capability)),
				zap.String("topic", req.Topic.Name),
				zap.String("model", p.model),
				zap.Error(err),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, apiErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, ErrNoChoicesInResponse)
	}
	content := resp.Choices[0].Message.Content

	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("capability", string(p.capability)),
			zap.String("topic", req.Topic.Name),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	block, err := p.parseBlock(content, req)
	if err != nil {
		// Malformed model output is a provider failure, never valid content
		return nil, &SchemaError{Provider: p.Name(), Reason: err.Error()}
	}
	return block, nil
}

// parseBlock decodes the model's JSON response into a content block.
// Tolerates fenced or prefixed output by slicing the outermost braces.
func (p *OpenAIProvider) parseBlock(content string, req *models.GenerationRequest) (*models.ContentBlock, error) {
	var payload struct {
		Explanation string `json:"explanation"`
		Examples    []struct {
			Text        string `json:"text"`
			Translation string `json:"translation"`
		} `json:"examples"`
		Exercises []struct {
			Prompt string `json:"prompt"`
			Answer string `json:"answer"`
			Kind   string `json:"kind"`
		} `json:"exercises"`
		Tip string `json:"tip"`
	}

	raw := content
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		if len(raw) > 0 && raw[0] != '{' {
			start := bytes.Index([]byte(raw), []byte("{"))
			end := bytes.LastIndex([]byte(raw), []byte("}"))
			if start != -1 && end != -1 && end > start {
				raw = raw[start : end+1]
			}
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("failed to parse content response: %w", err)
		}
	}

	block := &models.ContentBlock{
		Capability:  p.capability,
		Topic:       req.Topic.Name,
		Level:       req.Level,
		Explanation: strings.TrimSpace(payload.Explanation),
		Tip:         strings.TrimSpace(payload.Tip),
		Provider:    p.Name(),
	}
	for _, ex := range payload.Examples {
		block.Examples = append(block.Examples, models.Example{
			Text:        strings.TrimSpace(ex.Text),
			Translation: strings.TrimSpace(ex.Translation),
		})
	}
	for _, ex := range payload.Exercises {
		block.Exercises = append(block.Exercises, models.Exercise{
			Prompt: strings.TrimSpace(ex.Prompt),
			Answer: strings.TrimSpace(ex.Answer),
			Kind:   strings.TrimSpace(ex.Kind),
		})
	}
	return block, nil
}

// systemPrompt returns the capability-specific system message
func systemPrompt(capability models.Capability) string {
	switch capability {
	case models.CapabilityGrammar:
		return "You are a German grammar expert covering the complete Goethe syllabus from A1 to C2. " +
			"Produce educational grammar lessons with clear explanations. Respond with valid JSON only."
	case models.CapabilityVocabulary:
		return "You are a German vocabulary expert. Explain words, compound structure and related forms " +
			"at the learner's level. Respond with valid JSON only."
	case models.CapabilityConversation:
		return "You are a friendly German conversation partner. Create realistic dialogue practice " +
			"with cultural notes, matched to the learner's level. Respond with valid JSON only."
	default:
		return "You are a German language teacher. Respond with valid JSON only."
	}
}

// buildPrompt builds the generation prompt from the request's topic, level
// and learner context.
func (p *OpenAIProvider) buildPrompt(req *models.GenerationRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a %s lesson unit on the topic %q for a %s-level German learner.\n",
		req.Topic.Capability, req.Topic.Name, req.Level)

	switch p.capability {
	case models.CapabilityGrammar:
		b.WriteString("\nExplain the grammatical structure, show it in use, and include common mistakes to avoid.")
	case models.CapabilityVocabulary:
		b.WriteString("\nExplain the word family, break down compound words where relevant, and give memorable usage examples.")
	case models.CapabilityConversation:
		b.WriteString("\nWrite a short realistic dialogue scenario, include a cultural note, and give response patterns the learner can reuse.")
	}

	if len(req.Context.WeakPoints) > 0 {
		b.WriteString("\n\nThe learner is currently weak in: " + strings.Join(req.Context.WeakPoints, ", ") + ". Reinforce these where natural.")
	}
	if len(req.Context.RecentErrors) > 0 {
		b.WriteString("\nRecent mistakes to address: " + strings.Join(req.Context.RecentErrors, "; "))
	}

	b.WriteString(`

Respond with a JSON object in this format:
{
  "explanation": "clear explanation of the topic at the learner's level",
  "examples": [{"text": "German example", "translation": "English translation"}],
  "exercises": [{"prompt": "exercise prompt", "answer": "expected answer", "kind": "fill_blank" | "transform" | "respond"}],
  "tip": "one helpful tip for this level"
}

Include at least two examples and at least two exercises. Keep all German
content appropriate for the stated CEFR level. Return only valid JSON.`)

	return b.String()
}

// RegisterOpenAI registers the OpenAI provider with the registry
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(capability models.Capability, config map[string]string) (Provider, error) {
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, errors.New("openai api_key is required")
		}
		return NewOpenAIProvider(apiKey, config["base_url"], config["model"], capability, nil, false), nil
	})
}
