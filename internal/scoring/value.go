package scoring

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// EstimateValue scales the subsidy ceiling by a farm-size tier: 30% under 20 ha,
// 60% from 20 to 100 ha, the full amount above 100 ha.
func EstimateValue(maxAmount, hectares float64) float64 {
	if maxAmount <= 0 || hectares <= 0 {
		return 0
	}
	switch {
	case hectares < 20:
		return maxAmount * 0.3
	case hectares <= 100:
		return maxAmount * 0.6
	default:
		return maxAmount
	}
}

// FormatEuro renders an amount as a French-localized whole-euro string ("12 500 €").
func FormatEuro(amount float64) string {
	p := message.NewPrinter(language.French)
	return p.Sprintf("%d €", int64(math.Round(amount)))
}
