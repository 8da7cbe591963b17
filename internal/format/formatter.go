// Package format renders structured alert payloads into chat-style text.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

// Metric is one named value. A list keeps the caller's ordering.
type Metric struct {
	Name  string `json:"name" validate:"required"`
	Value any    `json:"value"`
}

// Delta is a change against a previous period.
type Delta struct {
	Name   string  `json:"name" validate:"required"`
	Change float64 `json:"change"`
}

// Data carries the fields for every kind; each kind reads its own subset.
type Data struct {
	Message          string          `json:"message"`
	Priority         domain.Priority `json:"priority"`
	IncludeTimestamp bool            `json:"includeTimestamp"`
	IncludeID        bool            `json:"includeId"`

	Title       string     `json:"title"`
	Items       []string   `json:"items"`
	Values      []Metric   `json:"values" validate:"dive"`
	Comparison  []Delta    `json:"comparison" validate:"dive"`
	Context     string     `json:"context"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Process     string     `json:"process"`
	Duration    string     `json:"duration"`
	Result      string     `json:"result"`
	Events      []string   `json:"events"`
	Alerts      []string   `json:"alerts"`
}

type Formatter struct {
	location *time.Location
	now      func() time.Time
	newID    func() string
}

func NewFormatter(location *time.Location) *Formatter {
	return newFormatter(location, time.Now, shortID)
}

func newFormatter(location *time.Location, nowFn func() time.Time, idFn func() string) *Formatter {
	if location == nil {
		location = time.UTC
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if idFn == nil {
		idFn = shortID
	}
	return &Formatter{location: location, now: nowFn, newID: idFn}
}

// Format renders data as the template for kind.
func (f *Formatter) Format(kind Kind, data Data) (string, error) {
	if err := requireFields(kind, data); err != nil {
		return "", err
	}

	now := f.now().In(f.location)

	switch kind {
	case KindAlert:
		return f.alert(data, now), nil
	case KindReport:
		return report(data, now), nil
	case KindCriticalError:
		return f.criticalError(data, now), nil
	case KindMetrics:
		return metrics(data, now), nil
	case KindReminder:
		return reminder(data, now), nil
	case KindProcessCompleted:
		return processCompleted(data, now), nil
	case KindDailySummary:
		return dailySummary(data, now), nil
	}
	return "", fmt.Errorf("%w: invalid message kind %q", domain.ErrValidation, kind)
}

func (f *Formatter) alert(data Data, now time.Time) string {
	var b strings.Builder
	b.WriteString(PriorityEmoji(data.Priority))
	b.WriteString(" ")
	b.WriteString(data.Message)
	if data.IncludeTimestamp {
		fmt.Fprintf(&b, "\n\n⏰ %s", now.Format(dateTimeLayout))
	}
	if data.IncludeID {
		fmt.Fprintf(&b, "\n🆔 %s", f.newID())
	}
	return b.String()
}

func report(data Data, now time.Time) string {
	var b strings.Builder
	writeHeading(&b, data.Title, now)
	if len(data.Items) > 0 {
		for i, item := range data.Items {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
	} else {
		writeMetrics(&b, data.Values)
	}
	return b.String()
}

func (f *Formatter) criticalError(data Data, now time.Time) string {
	lines := []string{"🚨 *CRITICAL ERROR*"}
	if ctx := strings.TrimSpace(data.Context); ctx != "" {
		lines = append(lines, "📍 *Context:* "+ctx)
	}
	lines = append(lines,
		"❌ *Error:* "+data.Message,
		"⏰ *Timestamp:* "+now.Format(dateTimeLayout),
		"🆔 *ID:* "+f.newID(),
		"",
		"⚠️ Immediate attention required",
	)
	return strings.Join(lines, "\n")
}

func metrics(data Data, now time.Time) string {
	var b strings.Builder
	writeHeading(&b, data.Title, now)
	writeMetrics(&b, data.Values)

	if len(data.Comparison) > 0 {
		b.WriteString("\n📈 *Comparison:*\n")
		for _, d := range data.Comparison {
			sign := ""
			if d.Change > 0 {
				sign = "+"
			}
			fmt.Fprintf(&b, "%s %s: %s%s\n", TrendArrow(d.Change), d.Name, sign, formatNumber(d.Change))
		}
	}
	return b.String()
}

func reminder(data Data, now time.Time) string {
	text := fmt.Sprintf("🔔 *REMINDER*\n📋 *%s*\n\n%s", data.Title, data.Description)
	if data.DueDate != nil {
		days := int(math.Ceil(data.DueDate.Sub(now).Hours() / 24))
		text += fmt.Sprintf("\n⏰ *Due in:* %d days", days)
	}
	return text
}

func processCompleted(data Data, now time.Time) string {
	text := fmt.Sprintf("✅ *PROCESS COMPLETED*\n🔄 *Process:* %s\n⏱️ *Duration:* %s\n⏰ *Finished:* %s",
		data.Process, data.Duration, now.Format(time.TimeOnly))
	if result := strings.TrimSpace(data.Result); result != "" {
		text += "\n📊 *Result:* " + result
	}
	return text
}

func dailySummary(data Data, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 *DAILY SUMMARY*\n📆 %s\n\n", now.Format("Monday, January 2, 2006"))

	if len(data.Values) > 0 {
		b.WriteString("📊 *Metrics:*\n")
		for _, m := range data.Values {
			fmt.Fprintf(&b, "• %s: %s\n", m.Name, formatValue(m.Value))
		}
		b.WriteString("\n")
	}
	writeBullets(&b, "🎯 *Key events:*", data.Events)
	if len(data.Events) > 0 {
		b.WriteString("\n")
	}
	writeBullets(&b, "⚠️ *Alerts:*", data.Alerts)

	return strings.TrimRight(b.String(), "\n")
}

func requireFields(kind Kind, data Data) error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s requires %s", domain.ErrValidation, kind, field)
	}

	switch kind {
	case KindAlert, KindCriticalError:
		if strings.TrimSpace(data.Message) == "" {
			return missing("message")
		}
	case KindReport:
		if strings.TrimSpace(data.Title) == "" {
			return missing("title")
		}
		if len(data.Items) == 0 && len(data.Values) == 0 {
			return missing("items or values")
		}
	case KindMetrics:
		if strings.TrimSpace(data.Title) == "" {
			return missing("title")
		}
		if len(data.Values) == 0 {
			return missing("values")
		}
	case KindReminder:
		if strings.TrimSpace(data.Title) == "" || strings.TrimSpace(data.Description) == "" {
			return missing("title and description")
		}
	case KindProcessCompleted:
		if strings.TrimSpace(data.Process) == "" || strings.TrimSpace(data.Duration) == "" {
			return missing("process and duration")
		}
	case KindDailySummary:
		if len(data.Values) == 0 && len(data.Events) == 0 && len(data.Alerts) == 0 {
			return missing("values, events or alerts")
		}
	default:
		return fmt.Errorf("%w: invalid message kind %q", domain.ErrValidation, kind)
	}
	return nil
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

func writeHeading(b *strings.Builder, title string, now time.Time) {
	fmt.Fprintf(b, "📊 *%s*\n📅 %s\n\n", title, now.Format(dateLayout))
}

func writeMetrics(b *strings.Builder, values []Metric) {
	for _, m := range values {
		fmt.Fprintf(b, "%s *%s:* %s\n", MetricEmoji(m.Name), m.Name, formatValue(m.Value))
	}
}

func writeBullets(b *strings.Builder, heading string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(heading)
	b.WriteString("\n")
	for _, line := range lines {
		fmt.Fprintf(b, "• %s\n", line)
	}
}

func formatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return "-"
	case float64:
		return formatNumber(n)
	default:
		return fmt.Sprint(v)
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:9])
}
