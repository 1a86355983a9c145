// Package dispatch fans one recorded alarm event out to the enabled
// reactions of its rule. Failures are isolated per reaction and per
// recipient: one channel or phone number failing never stops the rest.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lifebox-go/internal/command"
	"lifebox-go/internal/domain"
	"lifebox-go/internal/metrics"
	"lifebox-go/internal/notify"
	"lifebox-go/internal/render"
	"lifebox-go/internal/store"
)

// ReactionOutcome is the explicit result of one reaction's execution.
// Collecting these instead of raising makes the continue-on-failure
// contract observable and testable.
type ReactionOutcome struct {
	// Type is the reaction channel.
	Type domain.ReactionType

	// Recipients is how many delivery attempts were made.
	Recipients int

	// Failures is how many of those attempts failed.
	Failures int

	// Skipped marks reactions that ran as intentional no-ops (dashboard,
	// misconfigured command, unknown type).
	Skipped bool

	// Err is the reaction-level error, if any. Recipient-level failures
	// are counted in Failures and logged, not surfaced here.
	Err error
}

// Dispatcher delivers recorded events through the configured channels.
type Dispatcher struct {
	sms      notify.SmsSender
	email    notify.EmailSender
	commands command.Enqueuer
	events   store.AlarmEventRepository
	logger   *slog.Logger
}

// New creates a dispatcher.
func New(
	sms notify.SmsSender,
	email notify.EmailSender,
	commands command.Enqueuer,
	events store.AlarmEventRepository,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		sms:      sms,
		email:    email,
		commands: commands,
		events:   events,
		logger:   logger,
	}
}

// Dispatch runs every enabled reaction of the rule against the event and
// returns one outcome per reaction. devCtx may be nil when the device could
// not be resolved; messages then render with safe defaults and the client's
// implicit recipients are empty.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	rule *domain.AlarmRule,
	event *domain.AlarmEvent,
	devCtx *domain.DeviceContext,
) []ReactionOutcome {
	start := time.Now()
	rcx := render.NewContext(rule, event, devCtx)

	reactions := rule.EnabledReactions()
	outcomes := make([]ReactionOutcome, 0, len(reactions))

	for _, reaction := range reactions {
		outcome := d.dispatchReaction(ctx, rule, reaction, event, devCtx, rcx)

		status := "success"
		switch {
		case outcome.Skipped:
			status = "skipped"
		case outcome.Err != nil || outcome.Failures > 0:
			status = "failure"
		}
		metrics.ReactionsDispatchedTotal.WithLabelValues(string(reaction.Type), status).Inc()

		if outcome.Err != nil {
			d.logger.Error("reaction failed",
				"error", outcome.Err,
				"reactionType", reaction.Type,
				"ruleID", rule.ID,
				"eventID", event.ID,
			)
		}

		outcomes = append(outcomes, outcome)
	}

	metrics.DispatchLatency.Observe(time.Since(start).Seconds())
	return outcomes
}

// dispatchReaction executes one reaction. A panic inside a sender is
// converted into the outcome error so sibling reactions still run.
func (d *Dispatcher) dispatchReaction(
	ctx context.Context,
	rule *domain.AlarmRule,
	reaction domain.AlarmReaction,
	event *domain.AlarmEvent,
	devCtx *domain.DeviceContext,
	rcx render.Context,
) (outcome ReactionOutcome) {
	outcome.Type = reaction.Type

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("reaction panicked: %v", r)
		}
	}()

	switch reaction.Type {
	case domain.ReactionDashboard:
		// The recorded event is itself the dashboard signal.
		outcome.Skipped = true

	case domain.ReactionSMS:
		d.dispatchSms(ctx, rule, reaction, event, devCtx, rcx, &outcome)

	case domain.ReactionEmail:
		d.dispatchEmail(ctx, rule, reaction, event, devCtx, rcx, &outcome)

	case domain.ReactionShutdown:
		// Shutdown is recorded as intent only; no actuation is wired here.
		d.logger.Warn("shutdown reaction triggered, no actuation configured",
			"ruleID", rule.ID,
			"deviceID", event.DeviceID,
			"eventID", event.ID,
		)

	case domain.ReactionCommand:
		d.dispatchCommand(ctx, rule, reaction, event, &outcome)

	default:
		d.logger.Warn("unknown reaction type ignored",
			"reactionType", reaction.Type,
			"ruleID", rule.ID,
		)
		outcome.Skipped = true
	}

	return outcome
}

// dispatchSms sends the rendered text to the client's phone numbers plus
// any numbers on the reaction config. Each attempt is isolated.
func (d *Dispatcher) dispatchSms(
	ctx context.Context,
	rule *domain.AlarmRule,
	reaction domain.AlarmReaction,
	event *domain.AlarmEvent,
	devCtx *domain.DeviceContext,
	rcx render.Context,
	outcome *ReactionOutcome,
) {
	fallback := fmt.Sprintf("LIFEBOX ALERT: %s on %s", event.Message, rcx.DeviceName)
	message := render.Render(rule.SmsMessage, rcx, fallback)

	var recipients []string
	if devCtx != nil && devCtx.Client != nil {
		recipients = append(recipients, devCtx.Client.PhoneNumbers...)
	}
	recipients = append(recipients, reaction.Config.PhoneNumbers()...)

	for _, phone := range recipients {
		outcome.Recipients++
		result, err := d.sms.Send(ctx, phone, message)
		if err != nil || !result.Success {
			outcome.Failures++
			d.logger.Error("sms delivery failed",
				"error", err,
				"phoneNumber", phone,
				"provider", result.Provider,
				"reason", result.Reason,
				"eventID", event.ID,
			)
		}
	}
}

// dispatchEmail sends the rendered HTML to the client's primary user plus
// any addresses on the reaction config. Each attempt is isolated.
func (d *Dispatcher) dispatchEmail(
	ctx context.Context,
	rule *domain.AlarmRule,
	reaction domain.AlarmReaction,
	event *domain.AlarmEvent,
	devCtx *domain.DeviceContext,
	rcx render.Context,
	outcome *ReactionOutcome,
) {
	html := render.Render(rule.EmailMessage, rcx, defaultEmailHTML(rcx, event))
	subject := fmt.Sprintf("Lifebox Alarm: %s", rule.Name)

	var recipients []string
	if devCtx != nil && devCtx.Client != nil && devCtx.Client.PrimaryEmail != "" {
		recipients = append(recipients, devCtx.Client.PrimaryEmail)
	}
	recipients = append(recipients, reaction.Config.EmailAddresses()...)

	for _, addr := range recipients {
		outcome.Recipients++
		if err := d.email.Send(ctx, addr, subject, html); err != nil {
			outcome.Failures++
			d.logger.Error("email delivery failed",
				"error", err,
				"to", addr,
				"eventID", event.ID,
			)
		}
	}
}

// dispatchCommand enqueues a device command and appends a status suffix to
// the event message. A missing commandType is a configuration problem, not
// an error: warn and no-op.
func (d *Dispatcher) dispatchCommand(
	ctx context.Context,
	rule *domain.AlarmRule,
	reaction domain.AlarmReaction,
	event *domain.AlarmEvent,
	outcome *ReactionOutcome,
) {
	commandType := reaction.Config.CommandType()
	if commandType == "" {
		d.logger.Warn("command reaction missing commandType, skipping",
			"ruleID", rule.ID,
			"eventID", event.ID,
		)
		outcome.Skipped = true
		return
	}

	reason := reaction.Config.Reason()
	if reason == "" {
		reason = fmt.Sprintf("alarm rule %q fired", rule.Name)
	}

	commandID, err := d.commands.Enqueue(ctx, command.Request{
		DeviceID:    event.DeviceID,
		CommandType: commandType,
		Reason:      reason,
		Payload:     reaction.Config.Payload(),
		RequestedBy: "alarm-engine",
	})
	if err != nil {
		suffix := fmt.Sprintf(" | Command failed: %s", commandType)
		if appendErr := d.events.AppendToMessage(ctx, event.ID, suffix); appendErr != nil {
			d.logger.Warn("failed to append command status to event", "error", appendErr, "eventID", event.ID)
		}
		outcome.Err = fmt.Errorf("failed to enqueue command %q: %w", commandType, err)
		return
	}

	outcome.Recipients = 1
	suffix := fmt.Sprintf(" | Command sent: %s (%s)", commandType, commandID)
	if err := d.events.AppendToMessage(ctx, event.ID, suffix); err != nil {
		d.logger.Warn("failed to append command status to event", "error", err, "eventID", event.ID)
	}
}

// defaultEmailHTML is the fallback email body used when the rule carries no
// custom email template.
func defaultEmailHTML(rcx render.Context, event *domain.AlarmEvent) string {
	return fmt.Sprintf(
		"<h2>Lifebox Alarm</h2>"+
			"<p><strong>%s</strong></p>"+
			"<p>Device: %s<br/>Metric: %s<br/>Value: %s (threshold: %s)<br/>Severity: %s<br/>Time: %s</p>",
		event.Message,
		rcx.DeviceName,
		rcx.MetricName,
		render.FormatValue(rcx.Value),
		render.FormatValue(rcx.Threshold),
		rcx.Severity,
		rcx.Time.Format(time.RFC1123),
	)
}
