package consumer

import (
	"fmt"
	"math"
)

// buildText renders the exact HTML signal message format.
func buildText(symbol string, multiplier, dailyPctChange, dailyQuoteVolume float64, signalCount int, deepLink string) string {
	emoji := "🔻"
	if multiplier >= 1 {
		emoji = "🚀"
	}

	return fmt.Sprintf(
		"%s Резкий рост объема: %s\n\n"+
			"Текущий объем выше среднего в %.2fx\n"+
			"Изменение цены за день: %.2f%%\n"+
			"Объем за день: %s $\n"+
			"Сигналов подряд: %d\n\n"+
			"%s",
		emoji, symbol, multiplier, dailyPctChange, humanVolume(dailyQuoteVolume), signalCount, deepLink,
	)
}

// humanVolume renders a volume with a K/M/B suffix for readability.
func humanVolume(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
