package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rpattn/kbtrust/internal/domain"
)

const (
	defaultCollaboratorTimeout = 15 * time.Second
	snippetPromptLimit         = 280
)

// OpenAICollaborator summarizes section evidence through the OpenAI chat
// completion API in JSON mode.
type OpenAICollaborator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAICollaborator builds the collaborator, or reports it
// unavailable when no API key is configured.
func NewOpenAICollaborator(apiKey, model string) (*OpenAICollaborator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: missing API key", domain.ErrCollaboratorUnavailable)
	}
	if model == "" {
		model = openai.GPT4oMini
		log.Printf("[SYNTH] collaborator model not set, defaulting to %s", model)
	}
	return &OpenAICollaborator{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: defaultCollaboratorTimeout,
	}, nil
}

type promptEvidence struct {
	EvidenceUnitID string `json:"evidence_unit_id"`
	FieldName      string `json:"field_name"`
	SnippetText    string `json:"snippet_text"`
}

type completionPrompt struct {
	Instruction   string           `json:"instruction"`
	Section       string           `json:"section"`
	EvidenceUnits []promptEvidence `json:"evidence_units"`
	OutputSchema  map[string]any   `json:"output_schema"`
}

type completionPayload struct {
	Text            string   `json:"text"`
	EvidenceUnitIDs []string `json:"evidence_unit_ids"`
}

// Complete submits the candidate snippets and parses the JSON reply.
func (c *OpenAICollaborator) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	evidence := make([]promptEvidence, len(req.Candidates))
	for i, unit := range req.Candidates {
		evidence[i] = promptEvidence{
			EvidenceUnitID: unit.EvidenceUnitID,
			FieldName:      unit.FieldName,
			SnippetText:    truncatePromptSnippet(unit.SnippetText),
		}
	}

	prompt, err := json.Marshal(completionPrompt{
		Instruction: "Use only evidence_unit_ids from the list. Output JSON only. " +
			"Return a concise section text and the evidence_unit_ids used.",
		Section:       string(req.Section),
		EvidenceUnits: evidence,
		OutputSchema: map[string]any{
			"text":              "string",
			"evidence_unit_ids": []string{"string"},
		},
	})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("failed to build collaborator prompt: %w", err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "Output JSON only."},
			{Role: openai.ChatMessageRoleUser, Content: string(prompt)},
		},
	})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("collaborator call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, fmt.Errorf("collaborator returned no choices")
	}

	var payload completionPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return CompletionResult{}, fmt.Errorf("failed to parse collaborator reply: %w", err)
	}

	return CompletionResult{
		Text:            strings.TrimSpace(payload.Text),
		EvidenceUnitIDs: payload.EvidenceUnitIDs,
		Model:           c.model,
		TotalTokens:     resp.Usage.TotalTokens,
	}, nil
}

// truncatePromptSnippet cuts a candidate snippet to at most
// snippetPromptLimit characters without splitting a multibyte rune.
func truncatePromptSnippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetPromptLimit {
		return s
	}
	return string([]rune(s)[:snippetPromptLimit])
}
