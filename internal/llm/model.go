package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/optiview/optiview/internal/config"
	"github.com/optiview/optiview/internal/models"
)

// Model wraps a langchaingo LLM for query generation, relevance judgment
// and action phrasing.
type Model struct {
	llm       llms.Model
	modelName string
}

// NewModel creates an LLM model based on configuration.
func NewModel(cfg config.Config) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case "ollama", "":
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
	}, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// GenerateWithSystem generates text with a system prompt.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := m.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate with system: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return response.Choices[0].Content, nil
}

// GenerateQueries produces up to count natural-language queries a potential
// visitor of the profiled site might ask an AI assistant. One query per
// output line; callers dedupe and trim.
func (m *Model) GenerateQueries(ctx context.Context, profile models.SiteProfile, count int) ([]string, error) {
	systemPrompt := `You generate realistic search queries that users of AI assistants would ask
about a website's subject matter. Output one query per line, nothing else:
no numbering, no quotes, no commentary. Queries must be natural-language
questions or requests, varied in phrasing and intent (informational,
comparison, how-to, transactional).`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Website: %s\n", profile.Domain)
	if profile.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", profile.Title)
	}
	if profile.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", profile.Description)
	}
	if len(profile.TopKeywords) > 0 {
		fmt.Fprintf(&sb, "Key topics: %s\n", strings.Join(profile.TopKeywords, ", "))
	}
	if profile.SampleText != "" {
		fmt.Fprintf(&sb, "Content sample:\n%s\n", profile.SampleText)
	}
	fmt.Fprintf(&sb, "\nGenerate %d queries:", count)

	out, err := m.GenerateWithSystem(ctx, systemPrompt, sb.String())
	if err != nil {
		return nil, fmt.Errorf("generate queries: %w", err)
	}

	var queries []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), `"`))
		line = strings.TrimLeft(line, "0123456789.-) ")
		if line == "" {
			continue
		}
		queries = append(queries, line)
	}
	return queries, nil
}

// JudgeRelevance decides whether a page answers a query. Used only for
// generated queries without ground truth, when the scan opts into LLM
// judgment.
func (m *Model) JudgeRelevance(ctx context.Context, query, pageTitle, pageExcerpt string) (bool, error) {
	systemPrompt := `You judge whether a web page is relevant to a search query. A page is
relevant if its content would help answer the query. Reply with exactly one
word: YES or NO.`

	userPrompt := fmt.Sprintf("Query: %s\n\nPage title: %s\n\nPage content:\n%s\n\nRelevant?",
		query, pageTitle, pageExcerpt)

	out, err := m.GenerateWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return false, fmt.Errorf("judge relevance: %w", err)
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(out)), "YES"), nil
}

// PhraseAction rewrites a rule-generated action description into friendlier
// wording. Cosmetic only: priority and effort never depend on this.
func (m *Model) PhraseAction(ctx context.Context, description string, sampleQueries []string) (string, error) {
	systemPrompt := `You rewrite terse technical recommendations for website owners into one
clear, actionable sentence. Keep the meaning, drop the jargon. Output the
sentence only.`

	userPrompt := description
	if len(sampleQueries) > 0 {
		userPrompt += "\nExample affected queries: " + strings.Join(sampleQueries, "; ")
	}

	out, err := m.GenerateWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("phrase action: %w", err)
	}
	return strings.TrimSpace(out), nil
}
