// Package render substitutes named tokens into alarm message templates.
// It is used by the event recorder for dashboard messages and by the
// dispatcher for sms/email bodies.
package render

import (
	"strconv"
	"strings"
	"time"

	"lifebox-go/internal/domain"
)

// timeLayout is how the {time} token is formatted.
const timeLayout = "Jan 2, 2006 3:04:05 PM"

// Context carries the computed values behind every template token. The
// constructor fills safe defaults, so the substitution map always contains
// an entry for each enumerated token.
type Context struct {
	DeviceName string
	DeviceID   string
	ClientName string
	RuleName   string
	MetricName string
	Value      float64
	Threshold  float64
	Condition  domain.Operator
	Severity   domain.Severity
	Time       time.Time
}

// NewContext builds a render context from a rule, its event, and the
// resolved device context. devCtx may be nil; device and client names then
// fall back to safe defaults.
func NewContext(rule *domain.AlarmRule, event *domain.AlarmEvent, devCtx *domain.DeviceContext) Context {
	c := Context{
		DeviceName: "Unknown Device",
		DeviceID:   event.DeviceID,
		ClientName: "Unknown Client",
		RuleName:   rule.Name,
		MetricName: rule.MetricName,
		Value:      event.TriggeredValue,
		Threshold:  rule.Threshold,
		Condition:  rule.Operator,
		Severity:   event.Severity,
		Time:       event.TriggeredAt,
	}
	if devCtx != nil {
		if devCtx.Device != nil && devCtx.Device.Name != "" {
			c.DeviceName = devCtx.Device.Name
		}
		if devCtx.Client != nil && devCtx.Client.Name != "" {
			c.ClientName = devCtx.Client.Name
		}
	}
	return c
}

// Render substitutes every enumerated token in template with its computed
// value. If template is empty, fallback is returned verbatim. Tokens outside
// the enumerated set are left as literal text.
func Render(template string, c Context, fallback string) string {
	if template == "" {
		return fallback
	}

	replacer := strings.NewReplacer(
		"{deviceName}", c.DeviceName,
		"{deviceId}", c.DeviceID,
		"{clientName}", c.ClientName,
		"{ruleName}", c.RuleName,
		"{metricName}", c.MetricName,
		"{value}", FormatValue(c.Value),
		"{threshold}", FormatValue(c.Threshold),
		"{condition}", c.Condition.Text(),
		"{severity}", strings.ToUpper(string(c.Severity)),
		"{time}", c.Time.Format(timeLayout),
	)
	return replacer.Replace(template)
}

// FormatValue renders a metric value without trailing zeros, so 105.0
// renders as "105".
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
