// Package sections binds report section types to prompt templates and
// per-section generation parameters, and produces section content through
// the completion service.
package sections

// SectionType identifies one section of a generated report.
type SectionType string

const (
	SectionExecutiveSummary  SectionType = "executiveSummary"
	SectionCompanyOverview   SectionType = "companyOverview"
	SectionFinancialAnalysis SectionType = "financialAnalysis"
	SectionRiskAssessment    SectionType = "riskAssessment"
	SectionMarketPosition    SectionType = "marketPosition"
	SectionInvestmentThesis  SectionType = "investmentThesis"
)

// PromptVersion is recorded in section metadata so regenerated sections can
// be distinguished after template changes.
const PromptVersion = "v2"

// GenerationParams are the sampling parameters used for one section type.
type GenerationParams struct {
	Temperature float64
	MaxTokens   int
}

// Params returns the sampling parameters for a section type. Unknown types
// get the conservative defaults.
func (s SectionType) Params() GenerationParams {
	switch s {
	case SectionExecutiveSummary:
		return GenerationParams{Temperature: 0.4, MaxTokens: 1000}
	case SectionCompanyOverview:
		return GenerationParams{Temperature: 0.3, MaxTokens: 1200}
	case SectionFinancialAnalysis:
		return GenerationParams{Temperature: 0.2, MaxTokens: 2500}
	case SectionRiskAssessment:
		return GenerationParams{Temperature: 0.3, MaxTokens: 2000}
	case SectionMarketPosition:
		return GenerationParams{Temperature: 0.4, MaxTokens: 1500}
	case SectionInvestmentThesis:
		return GenerationParams{Temperature: 0.5, MaxTokens: 2000}
	default:
		return GenerationParams{Temperature: 0.3, MaxTokens: 1500}
	}
}

// Title returns the human-readable section heading.
func (s SectionType) Title() string {
	switch s {
	case SectionExecutiveSummary:
		return "Executive Summary"
	case SectionCompanyOverview:
		return "Company Overview"
	case SectionFinancialAnalysis:
		return "Financial Analysis"
	case SectionRiskAssessment:
		return "Risk Assessment"
	case SectionMarketPosition:
		return "Market Position"
	case SectionInvestmentThesis:
		return "Investment Thesis"
	default:
		return "Executive Summary"
	}
}

// Template returns the prompt template for a section type. Unknown types
// fall back to the executive summary template rather than failing, so that
// externally supplied section names always produce usable content.
func (s SectionType) Template() string {
	switch s {
	case SectionCompanyOverview:
		return companyOverviewTemplate
	case SectionFinancialAnalysis:
		return financialAnalysisTemplate
	case SectionRiskAssessment:
		return riskAssessmentTemplate
	case SectionMarketPosition:
		return marketPositionTemplate
	case SectionInvestmentThesis:
		return investmentThesisTemplate
	default:
		return executiveSummaryTemplate
	}
}

// SectionSystemPrompt frames every section request.
const SectionSystemPrompt = `You are a senior financial analyst writing sections of an institutional-grade company report. Write in clear, professional prose using Markdown formatting. Base every statement on the company data provided; when the data does not support a claim, say so rather than speculating. Do not include a section heading in your output.`

const executiveSummaryTemplate = `Write an executive summary for a financial analysis report on {{companyName}}.

Company data:
{{companyData}}

{{extraContext}}

Summarize the company's business, current financial condition, and overall outlook in 3-4 concise paragraphs. Lead with the most decision-relevant findings.`

const companyOverviewTemplate = `Write the company overview section of a financial analysis report on {{companyName}}.

Company data:
{{companyData}}

{{extraContext}}

Cover what the company does, its primary products or services, its industry and operating segments, and any notable recent developments reflected in the data.`

const financialAnalysisTemplate = `Write the financial analysis section of a report on {{companyName}}.

Company data:
{{companyData}}

{{extraContext}}

Analyze revenue trends, profitability, margins, balance sheet strength, and cash flow. Quote specific figures from the data and explain what they indicate. Flag any metrics that appear inconsistent or missing.`

const riskAssessmentTemplate = `Write the risk assessment section of a financial analysis report on {{companyName}}.

Company data:
{{companyData}}

{{extraContext}}

Identify the material risks facing the company: operational, financial, competitive, and regulatory. Rank them by likely impact and note any mitigating factors evident in the data.`

const marketPositionTemplate = `Write the market position section of a financial analysis report on {{companyName}}.

Company data:
{{companyData}}

{{extraContext}}

Describe the company's competitive standing within its industry, its differentiation, and how its scale and metrics compare to what is typical for the sector.`

const investmentThesisTemplate = `Write the investment thesis section of a financial analysis report on {{companyName}}.

Company data:
{{companyData}}

{{extraContext}}

Present the bull case and the bear case supported by the data, then conclude with the key factors an investor should monitor. Do not give a buy/sell recommendation.`
