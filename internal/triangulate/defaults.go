package triangulate

import (
	"log/slog"

	"macroscope/internal/mappings"
	"macroscope/internal/providers"
	"macroscope/internal/providers/fred"
	"macroscope/internal/providers/oecd"
	"macroscope/internal/providers/worldbank"
)

// NewDefault wires an engine over the standard FRED, World Bank and OECD
// clients. Each client owns one shared fetch.Client, so concurrent
// triangulations against the same provider stay within its request
// spacing. fredAPIKey may be empty; FRED then degrades to "no series".
func NewDefault(fredAPIKey string, tolerancePercent float64, logger *slog.Logger) (*Engine, error) {
	table := mappings.Default()
	return New(Config{
		TolerancePercent: tolerancePercent,
		Mappings:         table,
		Logger:           logger,
		Clients: []providers.Client{
			fred.NewWithConfig(fred.Config{APIKey: fredAPIKey, Mappings: table}),
			worldbank.NewWithConfig(worldbank.Config{Mappings: table}),
			oecd.NewWithConfig(oecd.Config{Mappings: table}),
		},
	})
}
