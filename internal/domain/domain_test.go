package domain

import "testing"

func TestDirectionSides(t *testing.T) {
	tests := []struct {
		direction Direction
		entry     OrderSide
		exit      OrderSide
	}{
		{Long, Buy, Sell},
		{Short, Sell, Buy},
	}
	for _, tt := range tests {
		if got := tt.direction.EntrySide(); got != tt.entry {
			t.Errorf("%s EntrySide() = %s, want %s", tt.direction, got, tt.entry)
		}
		if got := tt.direction.ExitSide(); got != tt.exit {
			t.Errorf("%s ExitSide() = %s, want %s", tt.direction, got, tt.exit)
		}
		if got := tt.direction.StopSide(); got != tt.exit {
			t.Errorf("%s StopSide() = %s, want %s", tt.direction, got, tt.exit)
		}
	}
}

func TestTradeBaseAsset(t *testing.T) {
	tests := []struct {
		asset string
		want  string
	}{
		{"BTCUSDT", "BTC"},
		{"ETHUSDT", "ETH"},
		{"USDT", "USDT"}, // no base prefix to strip
		{"BTCEUR", "BTCEUR"},
	}
	for _, tt := range tests {
		trade := &Trade{Asset: tt.asset}
		if got := trade.BaseAsset(); got != tt.want {
			t.Errorf("BaseAsset(%s) = %s, want %s", tt.asset, got, tt.want)
		}
	}
}

func TestWatchedAssets(t *testing.T) {
	s := &BotSettings{Assets: " BTCUSDT , ETHUSDT ,,SOLUSDT "}
	got := s.WatchedAssets()
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if len(got) != len(want) {
		t.Fatalf("WatchedAssets() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("WatchedAssets()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestIsOnline(t *testing.T) {
	if (&BotSettings{State: StateOffline}).IsOnline() {
		t.Error("OFFLINE settings must not report online")
	}
	if !DefaultSettings().IsOnline() {
		t.Error("default settings must report online")
	}
	var nilSettings *BotSettings
	if nilSettings.IsOnline() {
		t.Error("nil settings must not report online")
	}
}
