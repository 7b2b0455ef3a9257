package model

import "time"

// Metric is a supported macroeconomic indicator.
type Metric string

const (
	MetricGDPGrowth    Metric = "gdp_growth"
	MetricInflation    Metric = "inflation"
	MetricUnemployment Metric = "unemployment"
	MetricInterestRate Metric = "interest_rate"
)

func (m Metric) Valid() bool {
	switch m {
	case MetricGDPGrowth, MetricInflation, MetricUnemployment, MetricInterestRate:
		return true
	default:
		return false
	}
}

// DisplayName returns a human-readable metric label.
func (m Metric) DisplayName() string {
	switch m {
	case MetricGDPGrowth:
		return "GDP growth"
	case MetricInflation:
		return "inflation"
	case MetricUnemployment:
		return "unemployment"
	case MetricInterestRate:
		return "interest rate"
	default:
		return string(m)
	}
}

// Metrics lists every supported metric in a stable order.
func Metrics() []Metric {
	return []Metric{MetricGDPGrowth, MetricInflation, MetricUnemployment, MetricInterestRate}
}

// Confidence classifies how strongly the available sources agreed.
type Confidence string

const (
	ConfidenceHigh         Confidence = "high"
	ConfidenceMedium       Confidence = "medium"
	ConfidenceLow          Confidence = "low"
	ConfidenceSingleSource Confidence = "single_source"
	ConfidenceNoData       Confidence = "no_data"
)

// PeriodUnavailable is the sentinel period for a DataPoint with no usable
// observation.
const PeriodUnavailable = "N/A"

// DataPoint is one provider's answer for one (metric, country) pair.
// Value == nil means no usable observation; Err carries the reason when one
// is known (a provider may legitimately have no series for a country, in
// which case Err just says so). A DataPoint is built once per fetch attempt
// and never mutated afterwards.
type DataPoint struct {
	Source      string    `json:"source"`
	Metric      Metric    `json:"metric"`
	Country     string    `json:"country"`
	CountryCode string    `json:"country_code"`
	Value       *float64  `json:"value,omitempty"`
	Unit        string    `json:"unit"`
	Period      string    `json:"period"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Err         string    `json:"error,omitempty"`
}

// TriangulatedResult is the engine's output for one (metric, country) pair.
// The per-source value slots preserve each raw contributing value for
// auditability. The struct is a plain serializable value; downstream
// consumers may cache or persist it freely.
type TriangulatedResult struct {
	Metric              Metric     `json:"metric"`
	Country             string     `json:"country"`
	CountryCode         string     `json:"country_code"`
	Period              string     `json:"period"`
	Confidence          Confidence `json:"confidence"`
	ConsensusValue      *float64   `json:"consensus_value,omitempty"`
	FREDValue           *float64   `json:"fred_value,omitempty"`
	WorldBankValue      *float64   `json:"worldbank_value,omitempty"`
	OECDValue           *float64   `json:"oecd_value,omitempty"`
	Explanation         string     `json:"explanation"`
	SourcesUsed         []string   `json:"sources_used"`
	DisagreementDetails string     `json:"disagreement_details,omitempty"`
	RetrievedAt         time.Time  `json:"retrieved_at"`
}

// Float returns a pointer to v. Convenience for building optional values.
func Float(v float64) *float64 {
	return &v
}
