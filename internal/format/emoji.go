package format

import (
	"strings"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

var priorityEmoji = map[domain.Priority]string{
	domain.PriorityLow:      "🔵",
	domain.PriorityNormal:   "🟡",
	domain.PriorityHigh:     "🟠",
	domain.PriorityCritical: "🔴",
	domain.PriorityUrgent:   "⚠️",
}

var metricEmoji = map[string]string{
	"total":      "📊",
	"success":    "✅",
	"successful": "✅",
	"sent":       "✅",
	"failed":     "❌",
	"failures":   "❌",
	"pending":    "⏳",
	"error":      "💥",
	"errors":     "💥",
	"users":      "👥",
	"sales":      "💰",
	"revenue":    "💵",
	"time":       "⏱️",
	"latency":    "⏱️",
	"speed":      "🚀",
	"memory":     "🧠",
	"cpu":        "⚙️",
	"disk":       "💾",
}

// PriorityEmoji returns the marker prefixed to alerts of priority p.
func PriorityEmoji(p domain.Priority) string {
	if e, ok := priorityEmoji[p]; ok {
		return e
	}
	return "📱"
}

// MetricEmoji picks an icon by metric name, case-insensitively.
func MetricEmoji(name string) string {
	if e, ok := metricEmoji[strings.ToLower(strings.TrimSpace(name))]; ok {
		return e
	}
	return "📈"
}

func TrendArrow(change float64) string {
	switch {
	case change > 0:
		return "📈"
	case change < 0:
		return "📉"
	}
	return "➡️"
}
