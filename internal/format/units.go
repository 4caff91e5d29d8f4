package format

import (
	"fmt"
	"math"
)

// Percent renders a [0,1] ratio as a whole percentage, e.g. "75%".
func Percent(ratio float64) string {
	if math.IsNaN(ratio) {
		ratio = 0
	}
	return fmt.Sprintf("%.0f%%", math.Max(0, math.Min(1, ratio))*100)
}

// Celsius renders a temperature with two decimals, e.g. "46.00 °C".
func Celsius(t float64) string {
	return fmt.Sprintf("%.2f °C", t)
}

// GB renders a whole gigabyte count, e.g. "512 GB".
func GB(n int) string {
	return fmt.Sprintf("%d GB", n)
}
