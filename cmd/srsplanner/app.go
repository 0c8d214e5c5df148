package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"

	"srs-planner/internal/bot"
	"srs-planner/internal/config"
	"srs-planner/internal/logging"
	"srs-planner/internal/notify"
	"srs-planner/internal/repository"
	"srs-planner/internal/service"
)

// app holds the wiring shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB

	owners   *repository.OwnerRepository
	decks    *repository.DeckRepository
	logs     *repository.DispatchLogRepository
	store    *repository.GormItemStore
	reviews  *service.ReviewService
	queries  *service.QueryService
	cards    *service.CardService
	deckSvc  *service.DeckService
	prefs    *service.PreferenceService
	activity *service.ActivityService
	texts    *service.ReminderService
}

func newApp(configFile string, debug bool) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	logger, err := logging.New(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	db, err := repository.NewDB(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		owners: repository.NewOwnerRepository(db),
		decks:  repository.NewDeckRepository(db),
		logs:   repository.NewDispatchLogRepository(db),
		store:  repository.NewGormItemStore(db),
		texts:  service.NewReminderService(),
	}
	a.reviews = service.NewReviewService(a.store, cfg.Review.MaxRetries, logger)
	a.queries = service.NewQueryService(a.store, cfg.Review.DueLimit, logger)
	a.cards = service.NewCardService(a.decks, a.reviews)
	a.deckSvc = service.NewDeckService(a.decks, a.queries)
	a.prefs = service.NewPreferenceService(repository.NewPreferenceRepository(db), repository.NewPushTokenRepository(db), a.logs, logger)
	a.activity = service.NewActivityService(repository.NewSessionRepository(db))
	return a, nil
}

func (a *app) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// fanout builds the delivery channels. sender may be nil when Telegram is not
// configured.
func (a *app) fanout(sender notify.MessageSender) (*notify.Fanout, func()) {
	var channels []notify.Channel
	if sender != nil {
		channels = append(channels, notify.NewTelegramChannel(sender))
	}

	closeFn := func() {}
	if a.cfg.Push.Enabled {
		expo := notify.NewExpoChannel(notify.ExpoConfig{
			URL:           a.cfg.Push.URL,
			AccessToken:   a.cfg.Push.AccessToken,
			Timeout:       a.cfg.Push.Timeout,
			RetryAttempts: a.cfg.Push.RetryAttempts,
			Logger:        a.logger,
		})
		channels = append(channels, expo)
		closeFn = func() {
			if err := expo.Close(); err != nil {
				a.logger.Warn("close expo client", "error", err)
			}
		}
	}
	return notify.NewFanout(channels...), closeFn
}

func (a *app) dispatcher(deliverer service.Deliverer) *service.DispatchService {
	d := a.cfg.Dispatch
	return service.NewDispatchService(
		repository.NewTransactor(a.db),
		a.logs,
		a.queries,
		deliverer,
		a.texts,
		service.DispatchConfig{
			EveningHour:  d.EveningHour,
			MorningHour:  d.MorningHour,
			SendTimeout:  d.SendTimeout,
			Concurrency:  d.Concurrency,
			LogRetention: time.Duration(d.LogRetentionDays) * 24 * time.Hour,
			LockLease:    d.LockLease,
		},
		a.logger,
	)
}

func (a *app) botServices() bot.Services {
	return bot.Services{
		Owners:      a.owners,
		Cards:       a.cards,
		Decks:       a.deckSvc,
		Reviews:     a.reviews,
		Queries:     a.queries,
		Preferences: a.prefs,
		Activity:    a.activity,
		Texts:       a.texts,
	}
}
