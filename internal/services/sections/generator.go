package sections

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/finsight/reportgen/internal/interfaces"
	"github.com/finsight/reportgen/internal/models"
)

// DefaultTokenBudget is the estimated-token ceiling for a filled prompt.
const DefaultTokenBudget = 4000

// charsPerToken is the rough chars-to-tokens ratio used for budgeting.
const charsPerToken = 4

// truncationNotice is appended when a prompt had to be hard-truncated.
const truncationNotice = "\n\n[Note: company data was truncated to fit the prompt size limit.]"

// essentialFields is the whitelist kept when serialized company data blows
// the token budget.
var essentialFields = []string{"name", "ticker", "industry", "description", "financials"}

// GeneratedSection is the output of one section generation.
type GeneratedSection struct {
	Content     string
	GeneratedAt time.Time
	Metadata    models.SectionMetadata
}

// Generator fills section prompt templates from normalized company data and
// runs them through the completion service.
type Generator struct {
	completions interfaces.CompletionService
	tokenBudget int
	logger      arbor.ILogger
}

// NewGenerator creates a section generator. A tokenBudget of zero or less
// uses the default ceiling.
func NewGenerator(completions interfaces.CompletionService, tokenBudget int, logger arbor.ILogger) *Generator {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	return &Generator{
		completions: completions,
		tokenBudget: tokenBudget,
		logger:      logger,
	}
}

// Generate produces the content for one section. Unknown section types use
// the executive summary template and default parameters rather than
// failing.
func (g *Generator) Generate(ctx context.Context, sectionType SectionType, company *models.NormalizedCompany, extraContext string) (*GeneratedSection, error) {
	if company == nil {
		return nil, fmt.Errorf("company data is required")
	}

	prompt, err := g.buildPrompt(sectionType, company, extraContext)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt for section %s: %w", sectionType, err)
	}

	params := sectionType.Params()

	g.logger.Debug().
		Str("section_type", string(sectionType)).
		Str("company", company.Name).
		Float64("temperature", params.Temperature).
		Int("max_tokens", params.MaxTokens).
		Int("prompt_chars", len(prompt)).
		Msg("Generating report section")

	result, err := g.completions.Complete(ctx, prompt, interfaces.CompletionOptions{
		SystemPrompt: SectionSystemPrompt,
		Temperature:  params.Temperature,
		MaxTokens:    params.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("section %s generation failed: %w", sectionType, err)
	}

	return &GeneratedSection{
		Content:     result.Content,
		GeneratedAt: time.Now().UTC(),
		Metadata: models.SectionMetadata{
			TokensUsed:    result.TokensUsed,
			Model:         result.Model,
			PromptVersion: PromptVersion,
		},
	}, nil
}

// buildPrompt fills the section template and enforces the token budget:
// first with the full serialized company data, then with the essential
// field subset, and as a last resort by hard-truncating the prompt.
func (g *Generator) buildPrompt(sectionType SectionType, company *models.NormalizedCompany, extraContext string) (string, error) {
	data, err := serializeCompany(company, false)
	if err != nil {
		return "", err
	}

	prompt := fillTemplate(sectionType.Template(), company.Name, data, extraContext)
	if estimateTokens(prompt) <= g.tokenBudget {
		return prompt, nil
	}

	g.logger.Warn().
		Str("section_type", string(sectionType)).
		Int("estimated_tokens", estimateTokens(prompt)).
		Int("budget", g.tokenBudget).
		Msg("Prompt over token budget, shrinking company data to essential fields")

	data, err = serializeCompany(company, true)
	if err != nil {
		return "", err
	}
	prompt = fillTemplate(sectionType.Template(), company.Name, data, extraContext)
	if estimateTokens(prompt) <= g.tokenBudget {
		return prompt, nil
	}

	maxChars := g.tokenBudget*charsPerToken - len(truncationNotice)
	if maxChars < 0 {
		maxChars = 0
	}
	// Back off to a rune boundary so the cut never leaves a partial UTF-8
	// sequence in the prompt.
	for maxChars > 0 && !utf8.RuneStart(prompt[maxChars]) {
		maxChars--
	}
	g.logger.Warn().
		Str("section_type", string(sectionType)).
		Int("prompt_chars", len(prompt)).
		Int("max_chars", maxChars).
		Msg("Prompt still over budget, hard truncating")

	return prompt[:maxChars] + truncationNotice, nil
}

// estimateTokens approximates the token count of a prompt.
func estimateTokens(prompt string) int {
	return len(prompt) / charsPerToken
}

// fillTemplate substitutes the template placeholders. A blank extra context
// leaves no dangling placeholder text.
func fillTemplate(template, companyName, companyData, extraContext string) string {
	if extraContext != "" {
		extraContext = "Additional context:\n" + extraContext
	}
	filled := strings.NewReplacer(
		"{{companyName}}", companyName,
		"{{companyData}}", companyData,
		"{{extraContext}}", extraContext,
	).Replace(template)
	return strings.TrimSpace(filled)
}

// serializeCompany renders the company profile as indented JSON. With
// essentialOnly set, only the whitelisted fields survive.
func serializeCompany(company *models.NormalizedCompany, essentialOnly bool) (string, error) {
	var payload interface{} = company
	if essentialOnly {
		full := map[string]interface{}{
			"name":        company.Name,
			"ticker":      company.Ticker,
			"industry":    company.Industry,
			"description": company.Description,
			"financials":  company.Financials,
		}
		trimmed := make(map[string]interface{}, len(essentialFields))
		for _, field := range essentialFields {
			if v, ok := full[field]; ok && v != nil && v != "" {
				trimmed[field] = v
			}
		}
		payload = trimmed
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize company data: %w", err)
	}
	return string(data), nil
}
