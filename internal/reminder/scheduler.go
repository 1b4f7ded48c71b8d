// Package reminder scans upcoming confirmed appointments and creates at
// most one reminder notification per appointment and recipient.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/BivasNandan/Law-Aid-sub001/internal/chat"
	"github.com/BivasNandan/Law-Aid-sub001/internal/mail"
	"github.com/BivasNandan/Law-Aid-sub001/internal/metrics"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
)

type Config struct {
	// Interval between passes when Cron is empty.
	Interval time.Duration
	// Window is the half-width of the scan window around now+Lead. It is
	// widened to the gap between passes (Interval, or the widest gap of
	// Cron) so no appointment falls between two passes.
	Window time.Duration
	Lead   time.Duration
	Cron   string
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}
	gap := c.Interval
	if c.Cron != "" {
		if g, err := CronGap(c.Cron); err == nil {
			gap = g
		}
	}
	if c.Window < gap {
		c.Window = gap
	}
	if c.Lead <= 0 {
		c.Lead = 24 * time.Hour
	}
	return c
}

// cronSamples bounds how many consecutive ticks CronGap inspects.
const cronSamples = 64

// CronGap returns the widest gap between consecutive ticks of expr,
// sampled from a fixed reference so the result is stable.
func CronGap(expr string) (time.Duration, error) {
	ref := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	prev, err := gronx.NextTickAfter(expr, ref, true)
	if err != nil {
		return 0, err
	}
	var widest time.Duration
	for i := 0; i < cronSamples; i++ {
		next, err := gronx.NextTickAfter(expr, prev, false)
		if err != nil {
			return 0, err
		}
		if gap := next.Sub(prev); gap > widest {
			widest = gap
		}
		prev = next
	}
	return widest, nil
}

// Result counts what one pass did per (appointment, recipient) pair.
type Result struct {
	Scanned int `json:"scanned"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Scheduler struct {
	db      *gorm.DB
	emitter chat.Emitter
	mailer  mail.Sender
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	mailWG  sync.WaitGroup
}

func New(db *gorm.DB, emitter chat.Emitter, mailer mail.Sender, cfg Config, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		db:      db,
		emitter: emitter,
		mailer:  mailer,
		cfg:     cfg.withDefaults(),
		logger:  logger.With().Str("component", "reminder").Logger(),
		now:     time.Now,
	}
}

type party struct {
	user  *models.User
	other *models.User
	role  string
}

// RunOnce performs a single reminder pass. Only a failed appointment query
// returns an error; per-recipient failures are counted and logged.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	started := time.Now()
	defer func() { metrics.ReminderPassDuration.Observe(time.Since(started).Seconds()) }()

	now := s.now().UTC()
	target := now.Add(s.cfg.Lead)
	from, to := target.Add(-s.cfg.Window), target.Add(s.cfg.Window)

	var res Result
	appts, err := s.due(ctx, from, to)
	if err != nil {
		return res, err
	}
	s.logger.Info().
		Time("from", from).
		Time("to", to).
		Int("appointments", len(appts)).
		Msg("reminder pass")

	for i := range appts {
		appt := &appts[i]
		for _, p := range []party{
			{user: appt.Client, other: appt.Lawyer, role: "client"},
			{user: appt.Lawyer, other: appt.Client, role: "lawyer"},
		} {
			res.Scanned++
			created, err := s.remind(ctx, now, appt, p)
			switch {
			case err != nil:
				res.Failed++
				metrics.RemindersProcessed.WithLabelValues("failed").Inc()
				s.logger.Error().Err(err).
					Str("appointment_id", appt.ID).
					Str("role", p.role).
					Msg("reminder failed")
			case created:
				res.Created++
				metrics.RemindersProcessed.WithLabelValues("created").Inc()
			default:
				res.Skipped++
				metrics.RemindersProcessed.WithLabelValues("skipped").Inc()
			}
		}
	}

	s.logger.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("reminder pass done")
	return res, nil
}

// due lists confirmed appointments whose effective time is in [from, to).
func (s *Scheduler) due(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	contact := func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "user_name", "email", "profile_pic")
	}

	var appts []models.Appointment
	err := s.db.WithContext(ctx).
		Preload("Client", contact).
		Preload("Lawyer", contact).
		Where("status = ?", models.AppointmentConfirmed).
		Where("COALESCE(proposed_date_time, date_time) >= ?", from).
		Where("COALESCE(proposed_date_time, date_time) < ?", to).
		Order("date_time").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("query due appointments: %w", err)
	}
	return appts, nil
}

// remind creates the reminder for one party. It reports false without an
// error when the reminder already exists.
func (s *Scheduler) remind(ctx context.Context, now time.Time, appt *models.Appointment, p party) (bool, error) {
	if p.user == nil || p.other == nil {
		return false, errors.New("appointment party not found")
	}

	exists, err := s.exists(ctx, appt.ID, p.user.ID)
	if err != nil || exists {
		return false, err
	}

	when := appt.EffectiveTime().UTC()
	reminderAt := when.Add(-s.cfg.Lead)
	n := &models.Notification{
		RecipientID:          p.user.ID,
		Type:                 models.NotificationAppointmentReminder,
		Title:                "Appointment Reminder",
		Body:                 body(p, when),
		RelatedAppointmentID: &appt.ID,
		RelatedUserID:        &p.other.ID,
		ReminderTime:         &reminderAt,
		SentAt:               now,
		Reminder: &models.ReminderDetails{
			AppointmentTime: when,
			ProposedTime:    appt.ProposedDateTime,
			OriginalTime:    appt.DateTime,
			LawyerName:      appt.Lawyer.UserName,
			ClientName:      appt.Client.UserName,
			RecipientRole:   p.role,
			OtherPartyName:  p.other.UserName,
		},
	}

	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		// A concurrent pass won the unique index.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		if again, findErr := s.exists(ctx, appt.ID, p.user.ID); findErr == nil && again {
			return false, nil
		}
		return false, fmt.Errorf("create reminder: %w", err)
	}

	n.RelatedUser = &models.User{ID: p.other.ID, UserName: p.other.UserName, ProfilePic: p.other.ProfilePic}
	s.push(n)
	s.sendMail(p, appt, when)
	return true, nil
}

func (s *Scheduler) exists(ctx context.Context, appointmentID, recipientID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("related_appointment_id = ? AND recipient_id = ? AND type = ?",
			appointmentID, recipientID, models.NotificationAppointmentReminder).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check existing reminder: %w", err)
	}
	return count > 0, nil
}

func (s *Scheduler) push(n *models.Notification) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("notification_id", n.ID).Msg("push failed")
		}
	}()
	s.emitter.EmitToUser(n.RecipientID, chat.EventNotificationCreated, n)
}

// sendMail delivers the reminder email in the background. The pass does
// not wait for it.
func (s *Scheduler) sendMail(p party, appt *models.Appointment, when time.Time) {
	if p.user.Email == "" {
		return
	}
	html, err := renderEmail(p, appt, when)
	if err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appt.ID).Msg("render reminder email")
		return
	}

	to := p.user.Email
	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.mailer.Send(ctx, to, emailSubject, html)
	}()
}

// Wait blocks until background email sends have finished.
func (s *Scheduler) Wait() {
	s.mailWG.Wait()
}

// Start runs one pass immediately and then one per tick until ctx is
// done. The returned channel closes when the loop has exited.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	s.logger.Info().
		Dur("interval", s.cfg.Interval).
		Dur("window", s.cfg.Window).
		Str("cron", s.cfg.Cron).
		Msg("reminder scheduler started")

	go func() {
		defer close(done)
		s.runJob(ctx)
		if s.cfg.Cron != "" {
			s.cronLoop(ctx)
		} else {
			s.tickerLoop(ctx)
		}
		s.logger.Info().Msg("reminder scheduler stopped")
	}()
	return done
}

func (s *Scheduler) tickerLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx)
		}
	}
}

func (s *Scheduler) cronLoop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(s.cfg.Cron, s.now(), false)
		if err != nil {
			s.logger.Error().Err(err).Str("cron", s.cfg.Cron).Msg("next tick failed")
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			s.runJob(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// runJob skips the tick when the previous pass is still running.
func (s *Scheduler) runJob(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("previous reminder pass still running, skipping tick")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("reminder pass failed")
	}
}
