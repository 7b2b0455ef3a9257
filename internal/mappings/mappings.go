// Package mappings holds the static country-code and metric-code
// translation tables the provider clients use to build source-specific
// query identifiers. Pure data, no behavior.
package mappings

import (
	"strings"

	"macroscope/internal/model"
)

// Country maps an ISO 3-letter code to a display name and the identifier
// each provider expects for it.
type Country struct {
	Name      string
	FRED      string
	WorldBank string
	OECD      string
}

// FREDSeries holds per-country FRED series ids for one metric, plus an
// optional fallback template applied when a country has no direct entry.
// The template substitutes {country} with the requested code.
type FREDSeries struct {
	ByCountry map[string]string
	Template  string
}

// Table is the full translation surface injected into each provider client.
// Tests substitute reduced tables to exercise "no series" paths.
type Table struct {
	Countries map[string]Country
	FRED      map[model.Metric]FREDSeries
	WorldBank map[model.Metric]string
	// OECD holds SDMX data query path templates with a {country} slot.
	OECD map[model.Metric]string
}

// Default returns the built-in table covering USA, IND, EUU and CHN for all
// four metrics.
func Default() Table {
	return Table{
		Countries: map[string]Country{
			"USA": {Name: "United States", FRED: "USA", WorldBank: "USA", OECD: "USA"},
			"IND": {Name: "India", FRED: "IND", WorldBank: "IND", OECD: "IND"},
			"EUU": {Name: "European Union", FRED: "EUU", WorldBank: "EUU", OECD: "EA20"},
			"CHN": {Name: "China", FRED: "CHN", WorldBank: "CHN", OECD: "CHN"},
		},
		FRED: map[model.Metric]FREDSeries{
			model.MetricGDPGrowth: {
				ByCountry: map[string]string{
					"USA": "A191RL1Q225SBEA",
					"IND": "INDGDPRQPSMEI",
					"EUU": "CLVMNACSCAB1GQEA19",
					"CHN": "CHNGDPRQPSMEI",
				},
				Template: "CLVMNACSCAB1GQ{country}",
			},
			model.MetricInflation: {
				ByCountry: map[string]string{
					"USA": "CPIAUCSL",
					"IND": "INDCPIALLMINMEI",
					"EUU": "CP0000EZ19M086NEST",
					"CHN": "CHNCPIALLMINMEI",
				},
				Template: "CPALTT01{country}M659N",
			},
			model.MetricUnemployment: {
				ByCountry: map[string]string{
					"USA": "UNRATE",
					"IND": "LMUNRRTTINQ156S",
					"EUU": "LRHUTTTTEZM156S",
					"CHN": "LMUNRRTTCNM156S",
				},
				Template: "LRUN64TT{country}Q156S",
			},
			model.MetricInterestRate: {
				ByCountry: map[string]string{
					"USA": "FEDFUNDS",
					"IND": "INDIRLTLT01STM",
					"EUU": "ECBMRRFR",
					"CHN": "INTDSRCNM193N",
				},
				Template: "IR3TIB01{country}M156N",
			},
		},
		WorldBank: map[model.Metric]string{
			model.MetricGDPGrowth:    "NY.GDP.MKTP.KD.ZG",
			model.MetricInflation:    "FP.CPI.TOTL.ZG",
			model.MetricUnemployment: "SL.UEM.TOTL.ZS",
			model.MetricInterestRate: "FR.INR.RINR",
		},
		OECD: map[model.Metric]string{
			model.MetricGDPGrowth:    "QNA/B1_GE.{country}.VOBARSA.Q",
			model.MetricInflation:    "PRICES_CPI/CPALTT01.{country}.GP.A",
			model.MetricUnemployment: "LFS_SEXAGE_I_R/{country}.MW.Y15T64.UR.A",
			model.MetricInterestRate: "MEI_FIN/{country}.IRSTCI.ST.M",
		},
	}
}

// CountryName returns the display name for code, falling back to the code
// itself for countries outside the table.
func (t Table) CountryName(code string) string {
	if c, ok := t.Countries[code]; ok {
		return c.Name
	}
	return code
}

// FREDSeriesID resolves the FRED series id for a metric/country. Countries
// without a direct entry use the metric's fallback template when one is
// defined; otherwise ok is false and no id is fabricated.
func (t Table) FREDSeriesID(metric model.Metric, countryCode string) (string, bool) {
	series, ok := t.FRED[metric]
	if !ok {
		return "", false
	}
	fredCode := countryCode
	if c, ok := t.Countries[countryCode]; ok && c.FRED != "" {
		fredCode = c.FRED
	}
	if id, ok := series.ByCountry[fredCode]; ok {
		return id, true
	}
	if series.Template == "" {
		return "", false
	}
	return strings.ReplaceAll(series.Template, "{country}", fredCode), true
}

// WorldBankIndicator resolves the World Bank indicator id and country code
// for a metric/country.
func (t Table) WorldBankIndicator(metric model.Metric, countryCode string) (indicator, wbCountry string, ok bool) {
	indicator, ok = t.WorldBank[metric]
	if !ok {
		return "", "", false
	}
	wbCountry = countryCode
	if c, ok := t.Countries[countryCode]; ok && c.WorldBank != "" {
		wbCountry = c.WorldBank
	}
	return indicator, wbCountry, true
}

// OECDDataPath resolves the SDMX data query path for a metric/country.
func (t Table) OECDDataPath(metric model.Metric, countryCode string) (string, bool) {
	template, ok := t.OECD[metric]
	if !ok {
		return "", false
	}
	oecdCode := countryCode
	if c, ok := t.Countries[countryCode]; ok && c.OECD != "" {
		oecdCode = c.OECD
	}
	return strings.ReplaceAll(template, "{country}", oecdCode), true
}
