package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// presets maps friendly schedule names to cron expressions.
var presets = map[string]string{
	"every_minute":      "* * * * *",
	"every_5_minutes":   "*/5 * * * *",
	"every_15_minutes":  "*/15 * * * *",
	"every_30_minutes":  "*/30 * * * *",
	"hourly":            "0 * * * *",
	"every_2_hours":     "0 */2 * * *",
	"every_6_hours":     "0 */6 * * *",
	"every_12_hours":    "0 */12 * * *",
	"daily_midnight":    "0 0 * * *",
	"daily_2am":         "0 2 * * *",
	"weekly_sunday_3am": "0 3 * * 0",
	"monthly_1st_2am":   "0 2 1 * *",
}

// ResolveExpression turns a preset name or raw cron expression into a
// validated five-field cron expression.
func ResolveExpression(expression string) (string, error) {
	if expr, ok := presets[expression]; ok {
		return expr, nil
	}
	if _, err := cron.ParseStandard(expression); err != nil {
		return "", fmt.Errorf("invalid schedule %q: %w", expression, err)
	}
	return expression, nil
}

// Presets returns the friendly schedule names, for the admin surface.
func Presets() map[string]string {
	out := make(map[string]string, len(presets))
	for name, expr := range presets {
		out[name] = expr
	}
	return out
}
