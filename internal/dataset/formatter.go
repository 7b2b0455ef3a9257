// Package dataset turns triangulated results into ChatML training samples
// and writes them as JSONL datasets.
package dataset

import (
	"fmt"
	"strings"

	"macroscope/internal/model"
)

// SystemPrompt anchors every training sample.
const SystemPrompt = "You are a financial risk assistant specializing in macroeconomic analysis. " +
	"You provide accurate, data-driven insights by cross-referencing multiple authoritative sources " +
	"(FRED, World Bank, OECD). Always cite your sources and indicate confidence levels based on " +
	"data agreement across sources."

// Message is a single ChatML message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sample is one complete ChatML training sample.
type Sample struct {
	Messages []Message `json:"messages"`
}

var metricQuestions = map[model.Metric][]string{
	model.MetricGDPGrowth: {
		"What is the current GDP growth rate for %s?",
		"How is %s's economic growth performing?",
		"What's the GDP growth outlook for %s?",
		"Tell me about %s's GDP growth.",
	},
	model.MetricInflation: {
		"What is the inflation rate in %s?",
		"What's the inflation risk for %s?",
		"How high is inflation in %s?",
		"Tell me about %s's inflation situation.",
	},
	model.MetricUnemployment: {
		"What is the unemployment rate in %s?",
		"How is the job market in %s?",
		"What's the employment situation in %s?",
		"Tell me about unemployment in %s.",
	},
	model.MetricInterestRate: {
		"What is the current interest rate in %s?",
		"What are interest rates like in %s?",
		"Tell me about %s's monetary policy rate.",
		"What's the policy rate in %s?",
	},
}

type riskThresholds struct {
	low, moderate, high float64
}

var metricRiskThresholds = map[model.Metric]riskThresholds{
	model.MetricGDPGrowth:    {low: 1.0, moderate: 2.5, high: 4.0},
	model.MetricInflation:    {low: 2.0, moderate: 4.0, high: 6.0},
	model.MetricUnemployment: {low: 4.0, moderate: 6.0, high: 8.0},
	model.MetricInterestRate: {low: 2.0, moderate: 4.0, high: 6.0},
}

// riskLevel classifies a consensus value. GDP growth runs inverted: lower
// growth means higher risk.
func riskLevel(metric model.Metric, value *float64) string {
	if value == nil {
		return "unknown"
	}
	t, ok := metricRiskThresholds[metric]
	if !ok {
		return "unknown"
	}
	v := *value
	if metric == model.MetricGDPGrowth {
		switch {
		case v >= t.high:
			return "low"
		case v >= t.moderate:
			return "moderate"
		case v >= t.low:
			return "elevated"
		default:
			return "high"
		}
	}
	switch {
	case v <= t.low:
		return "low"
	case v <= t.moderate:
		return "moderate"
	case v <= t.high:
		return "elevated"
	default:
		return "high"
	}
}

func confidenceText(confidence model.Confidence) string {
	switch confidence {
	case model.ConfidenceHigh:
		return "high confidence (all sources agree)"
	case model.ConfidenceMedium:
		return "medium confidence (majority of sources agree)"
	case model.ConfidenceLow:
		return "low confidence (sources disagree significantly)"
	case model.ConfidenceSingleSource:
		return "limited confidence (single source only)"
	case model.ConfidenceNoData:
		return "no confidence (no data available)"
	default:
		return "unknown confidence"
	}
}

// Question returns the variant'th question for metric, phrased for the
// country name. Variants wrap around.
func Question(metric model.Metric, country string, variant int) string {
	questions, ok := metricQuestions[metric]
	if !ok {
		return fmt.Sprintf("What is the %s for %s?", metric, country)
	}
	return fmt.Sprintf(questions[variant%len(questions)], country)
}

// AssistantResponse renders the answer side of a sample from a result.
func AssistantResponse(result model.TriangulatedResult) string {
	citations := make([]string, 0, 3)
	if result.FREDValue != nil {
		citations = append(citations, fmt.Sprintf("FRED (%.2f%%)", *result.FREDValue))
	}
	if result.WorldBankValue != nil {
		citations = append(citations, fmt.Sprintf("World Bank (%.2f%%)", *result.WorldBankValue))
	}
	if result.OECDValue != nil {
		citations = append(citations, fmt.Sprintf("OECD (%.2f%%)", *result.OECDValue))
	}
	sourcesText := "no available sources"
	if len(citations) > 0 {
		sourcesText = strings.Join(citations, ", ")
	}

	if result.ConsensusValue == nil {
		return fmt.Sprintf("Unable to provide a reliable estimate for %s's %s. %s",
			result.Country, result.Metric.DisplayName(), result.Explanation)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on %s, %s's %s is approximately %.2f%% (as of %s).\n\n",
		sourcesText, result.Country, result.Metric.DisplayName(), *result.ConsensusValue, result.Period)
	fmt.Fprintf(&b, "**Confidence Level:** %s\n", capitalize(confidenceText(result.Confidence)))
	fmt.Fprintf(&b, "**Risk Assessment:** %s risk\n\n", capitalize(riskLevel(result.Metric, result.ConsensusValue)))
	fmt.Fprintf(&b, "**Analysis:** %s", result.Explanation)

	switch result.Metric {
	case model.MetricGDPGrowth:
		if *result.ConsensusValue < 1.0 {
			b.WriteString("\n\n**Implication:** Weak growth suggests potential recession risk. " +
				"Consider defensive positioning in portfolios.")
		} else if *result.ConsensusValue > 3.0 {
			b.WriteString("\n\n**Implication:** Strong growth may lead to inflationary pressures " +
				"and potential monetary tightening.")
		}
	case model.MetricInflation:
		if *result.ConsensusValue > 4.0 {
			b.WriteString("\n\n**Implication:** Elevated inflation erodes purchasing power and may " +
				"prompt central bank rate hikes. Duration exposure should be monitored.")
		}
	}
	return b.String()
}

// FormatSample builds a single-turn ChatML sample for a result.
func FormatSample(result model.TriangulatedResult, variant int) Sample {
	return Sample{
		Messages: []Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: Question(result.Metric, result.Country, variant)},
			{Role: "assistant", Content: AssistantResponse(result)},
		},
	}
}

// FormatMultiTurn builds one conversation covering several results for the
// same country, for training on follow-up questions.
func FormatMultiTurn(results []model.TriangulatedResult) Sample {
	messages := []Message{{Role: "system", Content: SystemPrompt}}
	for _, result := range results {
		messages = append(messages,
			Message{Role: "user", Content: Question(result.Metric, result.Country, 0)},
			Message{Role: "assistant", Content: AssistantResponse(result)},
		)
	}
	return Sample{Messages: messages}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
