package model

import "fmt"

// FrequencyLabel maps a repeat frequency in days to its human label.
// Several day counts collapse to the same label on purpose (a month is
// 30 or 31 days, a quarter 90 to 93, and so on); the routine view and
// its load estimates rely on exactly this grouping.
func FrequencyLabel(freqDays int) string {
	switch freqDays {
	case 1:
		return "Daily"
	case 2:
		return "Every other day"
	case 7:
		return "Weekly"
	case 14:
		return "Fortnightly"
	case 30, 31:
		return "Monthly"
	case 60, 61, 62:
		return "Every other month"
	case 90, 91, 92, 93:
		return "Quarterly"
	case 182, 183:
		return "Semi-annually"
	case 365, 366:
		return "Annually"
	default:
		return fmt.Sprintf("Every %d days", freqDays)
	}
}
