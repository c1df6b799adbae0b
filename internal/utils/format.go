package utils

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var enPrinter = message.NewPrinter(language.English)

// FormatAED renders an amount truncated to whole dirhams with thousands separators, e.g. "1,200,000 AED".
func FormatAED(amount float64) string {
	return FormatThousands(amount) + " AED"
}

// FormatThousands truncates toward zero and groups digits in threes
func FormatThousands(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "0"
	}
	return enPrinter.Sprintf("%d", int64(math.Trunc(amount)))
}
