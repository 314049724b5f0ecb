package config

import (
	"fmt"

	"github.com/fakeyudi/linewheel/internal/session"
)

// Variant names the line layout.
type Variant string

const (
	// VariantSix has production lines A to D and F, with E as a break line.
	VariantSix Variant = "six"
	// VariantFive has five identical production lines A to E.
	VariantFive Variant = "five"
)

// ParseVariant accepts "six", "five" or the empty string (six).
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantSix:
		return VariantSix, nil
	case VariantFive:
		return VariantFive, nil
	}
	return "", fmt.Errorf("unknown variant %q (supported: six, five)", s)
}

// DefaultBreakAlerts are the fixed break times of a shift.
var DefaultBreakAlerts = []string{"10:00", "11:45", "15:00"}

func productionCategories() []Category {
	return []Category{
		{Name: "生産"},
		{Name: "段取り", SubCategories: []string{"Lot切替", "材料補給", "調整", "始業点検"}},
		{Name: "トラブル", SubCategories: []string{"設備故障", "材料不良", "品質異常", "部品欠品", "その他"}},
		{Name: "停止", SubCategories: []string{"計画停止", "手待ち"}},
	}
}

func simpleCategories() []Category {
	return []Category{
		{Name: "段取り"},
		{Name: "稼働"},
		{Name: "停止"},
		{Name: "待機"},
		{Name: "トラブル", SubCategories: []string{"設備故障", "材料不良", "品質異常", "その他"}},
		{Name: session.TaskBreak},
	}
}

// Defaults returns the factory configuration of v.
func Defaults(v Variant) AppConfig {
	cfg := AppConfig{
		Lines:            make(map[session.LineID]LineConfig),
		BreakAlerts:      append([]string(nil), DefaultBreakAlerts...),
		MaxSessionMin:    540,
		MaxSessionAction: MaxSessionStop,
		CenterIdleAction: CenterResume,
		QuickResumeMin:   DefaultQuickResumeMin,
		Theme:            "dark",
		UIScale:          1.0,
	}
	if v == VariantFive {
		for _, id := range session.AllLines[:5] {
			cfg.Lines[id] = LineConfig{Name: "LINE " + id.String(), Categories: simpleCategories()}
		}
		return cfg
	}
	for _, id := range session.AllLines {
		if id == session.LineE {
			cfg.Lines[id] = LineConfig{
				Name:       session.TaskBreak,
				Categories: []Category{{Name: "計画休憩"}, {Name: "調整休憩"}},
			}
			continue
		}
		cfg.Lines[id] = LineConfig{Name: "LINE " + id.String(), Categories: productionCategories()}
	}
	return cfg
}
