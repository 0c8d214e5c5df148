package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"srs-planner/internal/model"
	"srs-planner/internal/notify"
	"srs-planner/internal/repository"
)

// DueCounter answers how many items of an owner are due.
type DueCounter interface {
	CountDue(ctx context.Context, ownerID string, now time.Time) (int, error)
}

// Deliverer sends one message through every channel it knows.
type Deliverer interface {
	Deliver(ctx context.Context, msg notify.Message) notify.Delivery
}

// dispatchLockName names the lease row shared by every scanning process.
const dispatchLockName = "dispatch_scan"

type DispatchConfig struct {
	EveningHour  int
	MorningHour  int
	SendTimeout  time.Duration
	Concurrency  int
	LogRetention time.Duration
	// LockLease bounds how long a crashed scanner blocks the others.
	LockLease time.Duration
}

// KindReport counts the outcome of one trigger kind in a scan.
type KindReport struct {
	Evaluated int
	Sent      int
	Failed    int
	Skipped   int
	Errors    int
}

// ScanReport summarises a dispatch pass. Every evaluated owner ends up in
// exactly one of Sent, Failed, Skipped or Errors.
type ScanReport struct {
	KindReport
	ByKind   map[model.TriggerKind]KindReport
	Duration time.Duration
}

func (r *ScanReport) add(kind model.TriggerKind, f func(*KindReport)) {
	f(&r.KindReport)
	k := r.ByKind[kind]
	f(&k)
	r.ByKind[kind] = k
}

type trigger struct {
	kind model.TriggerKind
	hour int
}

type pendingSend struct {
	kind     model.TriggerKind
	ownerID  string
	msg      notify.Message
	delivery notify.Delivery
}

// DispatchService runs the reminder scan.
type DispatchService struct {
	tx        *repository.Transactor
	logs      *repository.DispatchLogRepository
	due       DueCounter
	deliverer Deliverer
	reminders *ReminderService
	cfg       DispatchConfig
	clock     func() time.Time
	logger    *slog.Logger

	running atomic.Bool
}

func NewDispatchService(
	tx *repository.Transactor,
	logs *repository.DispatchLogRepository,
	due DueCounter,
	deliverer Deliverer,
	reminders *ReminderService,
	cfg DispatchConfig,
	logger *slog.Logger,
) *DispatchService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.LockLease <= 0 {
		cfg.LockLease = 10 * time.Minute
	}
	return &DispatchService{
		tx:        tx,
		logs:      logs,
		due:       due,
		deliverer: deliverer,
		reminders: reminders,
		cfg:       cfg,
		clock:     time.Now,
		logger:    logger,
	}
}

// RunScan evaluates every enabled trigger for every owner at now and sends
// the reminders that are due. Failures of single owners are logged and
// counted; the returned error is set only when the pass could not be read or
// persisted. A call made while another scan is running, in this process or
// in another one sharing the database, returns ErrScanInProgress.
//
// Owners are evaluated and messages are sent with no transaction open. Only
// the dispatch logs and token deactivations are written in one short
// transaction at the end, so card reviews never wait on a delivery.
func (s *DispatchService) RunScan(ctx context.Context, now time.Time) (ScanReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return ScanReport{}, ErrScanInProgress
	}
	defer s.running.Store(false)

	start := time.Now()
	now = now.UTC()
	logger := serviceLogger(ctx, s.logger, "dispatch", "scan", "now", now)
	report := ScanReport{ByKind: make(map[model.TriggerKind]KindReport)}

	repos := s.tx.Repos()
	holder := uuid.NewString()
	acquired, err := repos.Locks.Acquire(ctx, dispatchLockName, holder, s.clock(), s.cfg.LockLease)
	if err != nil {
		logger.Error("acquire scan lease failed", "error", err)
		return report, fmt.Errorf("dispatch scan: %w", err)
	}
	if !acquired {
		logger.Info("scan lease held elsewhere")
		return report, ErrScanInProgress
	}
	defer func() {
		if err := repos.Locks.Release(context.WithoutCancel(ctx), dispatchLockName, holder); err != nil {
			logger.Warn("release scan lease failed", "error", err)
		}
	}()

	pending, err := s.collect(ctx, repos, now, &report, logger)
	if err != nil {
		report.Duration = time.Since(start)
		logger.Error("dispatch scan failed", "error", err)
		return report, fmt.Errorf("dispatch scan: %w", err)
	}

	s.send(ctx, pending)

	err = s.tx.InDispatchTx(ctx, func(tx repository.DispatchRepos) error {
		for _, p := range pending {
			s.record(ctx, tx, p, now, &report, logger)
		}
		return nil
	})
	report.Duration = time.Since(start)
	if err != nil {
		logger.Error("dispatch scan failed", "error", err)
		return report, fmt.Errorf("dispatch scan: %w", err)
	}

	logger.Info("dispatch scan done",
		"evaluated", report.Evaluated,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"errors", report.Errors,
		"duration", report.Duration)
	return report, nil
}

// collect evaluates every owner with an enabled trigger and returns the
// messages to send.
func (s *DispatchService) collect(ctx context.Context, repos repository.DispatchRepos, now time.Time, report *ScanReport, logger *slog.Logger) ([]*pendingSend, error) {
	triggers := []trigger{
		{kind: model.TriggerEveningPractice, hour: s.cfg.EveningHour},
		{kind: model.TriggerMorningFlashcard, hour: s.cfg.MorningHour},
	}

	var pending []*pendingSend
	for _, trig := range triggers {
		prefs, err := repos.Preferences.ListEnabled(ctx, trig.kind)
		if err != nil {
			return nil, err
		}
		for _, pref := range prefs {
			report.add(trig.kind, func(r *KindReport) { r.Evaluated++ })

			p, err := s.evaluate(ctx, repos, trig, pref, now)
			switch {
			case err != nil:
				logger.Error("evaluate owner failed",
					"owner", pref.OwnerID,
					"kind", trig.kind,
					"error_kind", ErrorKind(err),
					"error", err)
				report.add(trig.kind, func(r *KindReport) { r.Errors++ })
			case p == nil:
				report.add(trig.kind, func(r *KindReport) { r.Skipped++ })
			default:
				pending = append(pending, p)
			}
		}
	}
	return pending, nil
}

// evaluate returns nil without error when the owner should not get the
// reminder in this pass.
func (s *DispatchService) evaluate(ctx context.Context, repos repository.DispatchRepos, trig trigger, pref model.NotificationPreference, now time.Time) (*pendingSend, error) {
	loc, err := LoadTimezone(pref.Timezone)
	if err != nil {
		serviceLogger(ctx, s.logger, "dispatch", "scan", "owner", pref.OwnerID).Warn("falling back to UTC",
			"timezone", pref.Timezone,
			"error_kind", ErrorKind(err))
		loc = time.UTC
	}
	if now.In(loc).Hour() != trig.hour {
		return nil, nil
	}

	dayStart := utcDayStart(now)
	sent, err := repos.Logs.WasSentSince(ctx, pref.OwnerID, trig.kind, dayStart)
	if err != nil {
		return nil, err
	}
	if sent {
		return nil, nil
	}

	var build func(notify.Recipient) notify.Message
	switch trig.kind {
	case model.TriggerEveningPractice:
		topics, err := repos.Sessions.TopicsSince(ctx, pref.OwnerID, dayStart)
		if err != nil {
			return nil, err
		}
		if len(topics) == 0 {
			return nil, nil
		}
		build = func(to notify.Recipient) notify.Message { return s.reminders.EveningMessage(to, topics) }
	case model.TriggerMorningFlashcard:
		due, err := s.due.CountDue(ctx, pref.OwnerID, now)
		if err != nil {
			return nil, err
		}
		if due == 0 {
			return nil, nil
		}
		build = func(to notify.Recipient) notify.Message { return s.reminders.MorningMessage(to, due) }
	default:
		return nil, fmt.Errorf("unknown trigger kind %q", trig.kind)
	}

	to, err := s.recipient(ctx, repos, pref.OwnerID)
	if err != nil {
		return nil, err
	}
	if to.Empty() {
		return nil, nil
	}
	return &pendingSend{kind: trig.kind, ownerID: pref.OwnerID, msg: build(to)}, nil
}

func (s *DispatchService) recipient(ctx context.Context, repos repository.DispatchRepos, ownerID string) (notify.Recipient, error) {
	to := notify.Recipient{OwnerID: ownerID}

	tokens, err := repos.Tokens.ActiveTokens(ctx, ownerID)
	if err != nil {
		return to, err
	}
	to.PushTokens = tokens

	owner, err := repos.Owners.FindByID(ctx, ownerID)
	switch {
	case err == nil:
		to.TelegramChatID = owner.TelegramID
	case errors.Is(err, repository.ErrNotFound):
	default:
		return to, err
	}
	return to, nil
}

// send delivers every pending message, each bounded by the send timeout.
func (s *DispatchService) send(ctx context.Context, pending []*pendingSend) {
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, p := range pending {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
			defer cancel()
			p.delivery = s.deliverer.Deliver(sendCtx, p.msg)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *DispatchService) record(ctx context.Context, repos repository.DispatchRepos, p *pendingSend, now time.Time, report *ScanReport, logger *slog.Logger) {
	logger = logger.With("owner", p.ownerID, "kind", p.kind)
	d := p.delivery
	if d.Attempted == 0 {
		logger.Debug("no channel could reach owner")
		report.add(p.kind, func(r *KindReport) { r.Skipped++ })
		return
	}

	entry := model.DispatchLog{OwnerID: p.ownerID, Kind: p.kind, Status: model.DispatchSent, SentAt: now}
	if !d.Delivered {
		entry.Status = model.DispatchFailed
		msg := d.Err().Error()
		entry.Error = &msg
	}
	if _, err := repos.Logs.Append(ctx, entry); err != nil {
		logger.Error("append dispatch log failed", "error", err)
		report.add(p.kind, func(r *KindReport) { r.Errors++ })
		return
	}

	for _, token := range d.Rejected(notify.ExpoChannelName) {
		if err := repos.Tokens.Deactivate(ctx, token); err != nil {
			logger.Error("deactivate push token failed", "error", err)
			continue
		}
		logger.Info("push token deactivated")
	}

	if d.Delivered {
		report.add(p.kind, func(r *KindReport) { r.Sent++ })
		return
	}
	logger.Warn("reminder not delivered", "error_kind", ErrorKind(d.Err()), "error", d.Err())
	report.add(p.kind, func(r *KindReport) { r.Failed++ })
}

// PruneLogs removes dispatch log entries older than the retention period.
func (s *DispatchService) PruneLogs(ctx context.Context, now time.Time) (int64, error) {
	if s.cfg.LogRetention <= 0 {
		return 0, nil
	}
	removed, err := s.logs.PruneBefore(ctx, now.Add(-s.cfg.LogRetention))
	if err != nil {
		return 0, err
	}
	serviceLogger(ctx, s.logger, "dispatch", "prune").Info("dispatch logs pruned", "removed", removed)
	return removed, nil
}

// Job adapts RunScan to a cron callback.
func (s *DispatchService) Job(ctx context.Context, now func() time.Time) func() {
	return func() {
		if _, err := s.RunScan(ctx, now()); err != nil && !errors.Is(err, ErrScanInProgress) {
			serviceLogger(ctx, s.logger, "dispatch", "job").Error("scheduled scan failed", "error", err)
		}
	}
}
