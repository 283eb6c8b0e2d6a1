// Package notify fans a report status change out to its followers and its
// reporter over email, SMS and Telegram. Every channel attempt is isolated:
// a failure or panic in one never stops the others, and nothing is retried.
package notify

import (
	"context"
	"fmt"
	"sync"

	"civictrack/backend/internal/config"
	"civictrack/backend/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UserDirectory resolves follower and reporter references to users.
type UserDirectory interface {
	FindUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, text, html string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type ChatSender interface {
	SendChat(ctx context.Context, chatID int64, text string) error
}

// Recorder keeps the audit trail of attempts.
type Recorder interface {
	RecordNotification(ctx context.Context, entry *models.NotificationLog) error
}

// Publisher is the report-scoped half of the realtime bus.
type Publisher interface {
	PublishToReport(ctx context.Context, reportID, name string, payload interface{})
}

// Translator renders localized message text.
type Translator interface {
	GetString(lang, key string) string
	Format(lang, key string, args ...interface{}) string
}

// Channels groups the senders. A nil sender disables that channel.
type Channels struct {
	Email EmailSender
	SMS   SMSSender
	Chat  ChatSender
}

// Summary describes one fan-out pass.
type Summary struct {
	Followers        int
	Attempts         int
	Failures         int
	ReporterNotified bool
}

// Dispatcher implements the status-change fan-out.
type Dispatcher struct {
	users       UserDirectory
	channels    Channels
	recorder    Recorder
	bus         Publisher
	text        Translator
	concurrency int
	logger      *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. recorder may be nil.
func NewDispatcher(users UserDirectory, channels Channels, recorder Recorder, bus Publisher, text Translator, concurrency int, logger *zap.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		users:       users,
		channels:    channels,
		recorder:    recorder,
		bus:         bus,
		text:        text,
		concurrency: concurrency,
		logger:      logger,
	}
}

// OnStatusChanged publishes the status_update event, then starts the fan-out
// in the background and returns without waiting for it. After Close only the
// event is published.
func (d *Dispatcher) OnStatusChanged(ctx context.Context, report *models.Report, oldStatus, newStatus models.ReportStatus) {
	d.bus.PublishToReport(ctx, report.ID, models.EventStatusUpdate, models.StatusUpdatePayload{
		ReportID: report.ID,
		Status:   newStatus,
	})

	snapshot := *report
	snapshot.Followers = append([]string(nil), report.Followers...)
	detached := context.WithoutCancel(ctx)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher closed, skipping notification fan-out", zap.String("report_id", report.ID))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("notification fan-out panicked",
					zap.String("report_id", snapshot.ID),
					zap.Any("panic", r),
				)
			}
		}()

		summary := d.FanOut(detached, &snapshot, oldStatus, newStatus)
		d.logger.Info("notification fan-out finished",
			zap.String("report_id", snapshot.ID),
			zap.Int("followers", summary.Followers),
			zap.Int("attempts", summary.Attempts),
			zap.Int("failures", summary.Failures),
			zap.Bool("reporter_notified", summary.ReporterNotified),
		)
	}()
}

// Close stops new fan-outs from starting. Fan-outs already running are left
// to finish; use Wait to drain them.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Wait blocks until every background fan-out has finished or ctx is done.
// Call Close first when no more status changes must be accepted.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FanOut notifies every follower and the reporter once. It never returns an
// error; failures are logged, recorded and counted.
func (d *Dispatcher) FanOut(ctx context.Context, report *models.Report, oldStatus, newStatus models.ReportStatus) Summary {
	var t tally

	users, err := d.users.FindUsersByIDs(ctx, report.Followers)
	if err != nil {
		d.logger.Warn("failed to resolve followers",
			zap.String("report_id", report.ID),
			zap.Int("followers", len(report.Followers)),
			zap.Error(err),
		)
		users = nil
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i := range users {
		u := users[i]
		g.Go(func() error {
			d.notifyFollower(ctx, report, &u, oldStatus, newStatus, &t)
			return nil
		})
	}
	g.Go(func() error {
		t.setReporter(d.notifyReporter(ctx, report, newStatus, &t))
		return nil
	})
	_ = g.Wait()

	s := t.summary()
	s.Followers = len(users)
	return s
}

func (d *Dispatcher) notifyFollower(ctx context.Context, report *models.Report, u *models.User, oldStatus, newStatus models.ReportStatus, t *tally) {
	lang := languageOf(u)
	oldLabel := d.statusLabel(lang, oldStatus)
	newLabel := d.statusLabel(lang, newStatus)

	if u.Email != "" && d.channels.Email != nil {
		subject := d.text.Format(lang, "follower.subject", report.Title)
		body := d.text.Format(lang, "follower.body", report.Title, oldLabel, newLabel)
		html := d.renderHTML(subject, body, "")
		t.add(d.attempt(ctx, report.ID, u.ID, models.ChannelEmail, u.Email, models.NotificationFollowerStatus, func() error {
			return d.channels.Email.SendEmail(ctx, u.Email, subject, body, html)
		}))
	}

	if u.Phone != "" && d.channels.SMS != nil {
		body := d.text.Format(lang, "follower.sms", report.Title, newLabel)
		t.add(d.attempt(ctx, report.ID, u.ID, models.ChannelSMS, u.Phone, models.NotificationFollowerStatus, func() error {
			return d.channels.SMS.SendSMS(ctx, u.Phone, body)
		}))
	}

	if u.TelegramChatID != 0 && d.channels.Chat != nil {
		body := d.text.Format(lang, "follower.body", report.Title, oldLabel, newLabel)
		recipient := fmt.Sprintf("%d", u.TelegramChatID)
		t.add(d.attempt(ctx, report.ID, u.ID, models.ChannelTelegram, recipient, models.NotificationFollowerStatus, func() error {
			return d.channels.Chat.SendChat(ctx, u.TelegramChatID, body)
		}))
	}
}

// notifyReporter sends the "your report was updated" email to the user who
// filed the report, falling back to the contact address captured at creation.
func (d *Dispatcher) notifyReporter(ctx context.Context, report *models.Report, newStatus models.ReportStatus, t *tally) bool {
	if d.channels.Email == nil {
		return false
	}

	var userID, recipient string
	lang := config.DefaultLanguage
	if report.ReporterID != "" {
		u, err := d.users.FindUserByID(ctx, report.ReporterID)
		if err != nil {
			d.logger.Warn("failed to resolve reporter",
				zap.String("report_id", report.ID),
				zap.String("user_id", report.ReporterID),
				zap.Error(err),
			)
		}
		if u != nil && u.Email != "" {
			userID, recipient, lang = u.ID, u.Email, languageOf(u)
		}
	}
	if recipient == "" {
		recipient = report.ReporterEmail
	}
	if recipient == "" {
		return false
	}

	subject := d.text.GetString(lang, "reporter.subject")
	summaryLine := d.text.Format(lang, "reporter.body", report.Title, d.statusLabel(lang, newStatus))
	body := summaryLine
	var remark string
	if newStatus == models.StatusRejected && report.RejectionRemark != "" {
		remark = d.text.Format(lang, "reporter.remark", report.RejectionRemark)
		body = body + "\n\n" + remark
	}
	html := d.renderHTML(subject, summaryLine, remark)

	ok := d.attempt(ctx, report.ID, userID, models.ChannelEmail, recipient, models.NotificationReporterUpdate, func() error {
		return d.channels.Email.SendEmail(ctx, recipient, subject, body, html)
	})
	t.add(ok)
	return ok
}

// attempt runs one channel send, converting panics into failures, then logs
// and records the outcome.
func (d *Dispatcher) attempt(ctx context.Context, reportID, userID string, channel models.Channel, recipient, kind string, send func() error) (ok bool) {
	err := safely(send)

	entry := &models.NotificationLog{
		ReportID:  reportID,
		UserID:    userID,
		Channel:   channel,
		Recipient: recipient,
		Kind:      kind,
		Status:    models.DeliverySent,
	}
	if err != nil {
		entry.Status = models.DeliveryFailed
		entry.Error = err.Error()
		d.logger.Warn("notification send failed",
			zap.String("report_id", reportID),
			zap.String("user_id", userID),
			zap.String("channel", string(channel)),
			zap.String("kind", kind),
			zap.Error(err),
		)
	} else {
		d.logger.Debug("notification sent",
			zap.String("report_id", reportID),
			zap.String("user_id", userID),
			zap.String("channel", string(channel)),
		)
	}

	if d.recorder != nil {
		if rerr := d.recorder.RecordNotification(ctx, entry); rerr != nil {
			d.logger.Warn("failed to record notification", zap.String("report_id", reportID), zap.Error(rerr))
		}
	}
	return err == nil
}

func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()
	return fn()
}

func (d *Dispatcher) statusLabel(lang string, s models.ReportStatus) string {
	return d.text.GetString(lang, "status."+string(s))
}

type tally struct {
	mu       sync.Mutex
	attempts int
	failures int
	reporter bool
}

func (t *tally) add(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	if !ok {
		t.failures++
	}
}

func (t *tally) setReporter(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reporter = ok
}

func (t *tally) summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summary{Attempts: t.attempts, Failures: t.failures, ReporterNotified: t.reporter}
}
