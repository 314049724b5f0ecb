package session

import (
	"fmt"
	"time"
)

// FormatDuration renders d as H:MM:SS, or MM:SS under an hour.
// Negative durations render as zero.
func FormatDuration(d time.Duration) string {
	sec := int64(d / time.Second)
	if sec < 0 {
		sec = 0
	}
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatDurationVerbose renders d rounded to seconds as N秒, N分 or N分M秒.
func FormatDurationVerbose(d time.Duration) string {
	sec := int64(d.Round(time.Second) / time.Second)
	if sec < 0 {
		sec = 0
	}
	if sec < 60 {
		return fmt.Sprintf("%d秒", sec)
	}
	m, s := sec/60, sec%60
	if s > 0 {
		return fmt.Sprintf("%d分%d秒", m, s)
	}
	return fmt.Sprintf("%d分", m)
}
