package domain

import "strings"

// SettingsID is the singleton key under which BotSettings is persisted.
const SettingsID = "MAIN_SETTINGS"

// BotSettings is the singleton runtime configuration record. It is mutated by
// the configuration surface and, for State, by the gateway's ban handler.
type BotSettings struct {
	ID               string           // Always SettingsID
	State            OperationalState // ONLINE or OFFLINE
	Assets           string           // Comma-separated watched symbols
	RiskPercent      float64          // Percent of free balance per new position
	MaxOpenPositions int              // Cap on concurrently open trades
	BaselineEquity   float64          // Anchor for all-time return calculation
}

// DefaultSettings returns the settings used when no record exists yet.
func DefaultSettings() *BotSettings {
	return &BotSettings{
		ID:               SettingsID,
		State:            StateOnline,
		Assets:           "BTCUSDT,ETHUSDT,SOLUSDT",
		RiskPercent:      10.0,
		MaxOpenPositions: 3,
	}
}

// WatchedAssets splits the Assets field into trimmed symbols, preserving
// order and dropping empty entries.
func (s *BotSettings) WatchedAssets() []string {
	parts := strings.Split(s.Assets, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if sym := strings.TrimSpace(p); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

// IsOnline reports whether trading operations are permitted.
func (s *BotSettings) IsOnline() bool {
	return s != nil && s.State == StateOnline
}
