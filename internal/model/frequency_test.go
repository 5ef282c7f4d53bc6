package model

import "testing"

func TestFrequencyLabel(t *testing.T) {
	tests := []struct {
		freqDays int
		want     string
	}{
		{1, "Daily"},
		{2, "Every other day"},
		{3, "Every 3 days"},
		{7, "Weekly"},
		{14, "Fortnightly"},
		{30, "Monthly"},
		{31, "Monthly"},
		{60, "Every other month"},
		{62, "Every other month"},
		{90, "Quarterly"},
		{93, "Quarterly"},
		{182, "Semi-annually"},
		{365, "Annually"},
		{366, "Annually"},
		{100, "Every 100 days"},
	}
	for _, tt := range tests {
		if got := FrequencyLabel(tt.freqDays); got != tt.want {
			t.Errorf("FrequencyLabel(%d) = %q, want %q", tt.freqDays, got, tt.want)
		}
	}
}
