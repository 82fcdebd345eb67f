package transcript

import (
	"fmt"
	"time"
)

// FormatDuration renders d as M:SS with whole seconds floored, e.g. 0:00,
// 1:05, 61:01. Minutes are not wrapped into hours. Negative durations render
// as 0:00.
func FormatDuration(d time.Duration) string {
	secs := max(int64(d/time.Second), 0)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
