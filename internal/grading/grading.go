// Package grading calls a chat-completion model to grade a transcribed
// answer against its assignment context.
package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	apperrors "github.com/louisbranch/classwork/internal/errors"
)

// Request carries the grading context for one transcribed answer.
type Request struct {
	ExtractedText   string
	Question        string
	AssignmentTitle string
	Subject         string
}

// Result is the model's verdict for one answer.
type Result struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Grader grades one transcribed answer.
type Grader interface {
	Grade(ctx context.Context, req Request) (Result, error)
}

// Config configures the grading model client.
type Config struct {
	APIKey string
	// BaseURL overrides the provider endpoint, e.g. for a proxy.
	BaseURL string
	Model   string
	// MaxRetries bounds transport-level retries of the completion call.
	MaxRetries int
}

// maxAnswerChars caps the answer text sent to the model so the prompt stays
// well-formed even for very long transcriptions.
const maxAnswerChars = 2000

const systemPrompt = `You are a strict but fair school teacher grading a student's written answer.
Grade on a scale from 2 (failing) to 5 (excellent), judging only how relevant
and correct the answer is for the given question. Ignore incidental artifacts
in the transcription such as watermarks, links, or scanner noise.
Respond with only a JSON object of the shape {"score": 2|3|4|5, "feedback": "..."}
and nothing else.`

// Client grades answers through a chat-completion API.
type Client struct {
	api   openai.Client
	model openai.ChatModel
}

// NewClient builds a grading client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("grading api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		api:   openai.NewClient(opts...),
		model: openai.ChatModel(cfg.Model),
	}, nil
}

// Grade sends the answer to the model and parses the strict JSON verdict.
// Any reply that does not parse as {"score":2..5,"feedback":string} is a
// malformed-response failure, not a partial result.
func (c *Client) Grade(ctx context.Context, req Request) (Result, error) {
	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(UserPrompt(req)),
		},
	})
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeGradingFailed, "grading completion failed", err)
	}
	if len(completion.Choices) == 0 {
		return Result{}, apperrors.New(apperrors.CodeGradingMalformed, "grading response has no choices")
	}
	return ParseVerdict(completion.Choices[0].Message.Content)
}

// UserPrompt renders the grading context the model sees: the question (or the
// assignment title and subject when no explicit question exists) followed by
// the truncated answer text.
func UserPrompt(req Request) string {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = strings.TrimSpace(req.AssignmentTitle)
		if subject := strings.TrimSpace(req.Subject); subject != "" {
			question += " (" + subject + ")"
		}
	}

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nStudent answer (transcribed from an image):\n")
	b.WriteString(NormalizeAnswerText(req.ExtractedText))
	b.WriteString("\n\nReturn only the JSON object.")
	return b.String()
}

// NormalizeAnswerText truncates the answer to the prompt budget and replaces
// quote characters so the embedded text cannot break the prompt structure.
func NormalizeAnswerText(text string) string {
	runes := []rune(text)
	if len(runes) > maxAnswerChars {
		runes = runes[:maxAnswerChars]
	}
	normalized := string(runes)
	replacer := strings.NewReplacer(`"`, `'`, "“", `'`, "”", `'`, "‘", `'`, "’", `'`)
	return replacer.Replace(normalized)
}

// ParseVerdict parses the model reply into a Result, tolerating surrounding
// whitespace and markdown code fences but nothing else.
func ParseVerdict(reply string) (Result, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var verdict Result
	if err := json.Unmarshal([]byte(cleaned), &verdict); err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeGradingMalformed, "grading reply is not the expected json shape", err)
	}
	if verdict.Score < 2 || verdict.Score > 5 {
		return Result{}, apperrors.New(apperrors.CodeGradingMalformed,
			fmt.Sprintf("grading score %d outside 2..5", verdict.Score))
	}
	return verdict, nil
}
