package main

import (
	"fmt"
	"os"

	"github.com/jscyril/stem_studio/internal/config"
	"github.com/jscyril/stem_studio/internal/logger"
	"github.com/jscyril/stem_studio/internal/project"
	"github.com/jscyril/stem_studio/internal/separate"
	"github.com/jscyril/stem_studio/internal/stems"
	"github.com/jscyril/stem_studio/internal/timeline"
	"github.com/jscyril/stem_studio/pkg/events"
	"go.uber.org/zap"
)

// studio is the wiring shared by every command
type studio struct {
	cfg     *config.Config
	log     *zap.Logger
	flush   func()
	bus     *events.EventBus
	tl      *timeline.Timeline
	runner  *separate.Runner
	session *project.Session
}

type studioOptions struct {
	console bool // log to stderr as well as the file
	watch   bool
}

func newStudio(opts studioOptions) (*studio, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	log, flush, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Console:    cfg.Logging.Console || opts.console,
	}, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	backend, err := separate.New(separate.Options{
		Backend: cfg.Separation.Backend,
		Command: cfg.Separation.Command,
		Model:   cfg.Separation.Model,
		Args:    cfg.Separation.Args,
	}, log.Named("separate"))
	if err != nil {
		flush()
		return nil, err
	}

	bus := events.NewEventBus()
	tl := timeline.New(timeline.Options{
		SampleRate:  cfg.Audio.SampleRate,
		TrackCount:  len(cfg.Timeline.Tracks),
		MinDuration: cfg.Timeline.MinDuration,
		TailPadding: cfg.Timeline.TailPadding,
		SnapSeconds: cfg.Timeline.SnapSeconds,
	})
	runner := separate.NewRunner(backend, bus, log.Named("separate"))
	session := project.NewSession(tl, runner, project.Options{
		LoadWorkers:     cfg.Project.LoadWorkers,
		ResampleQuality: cfg.Audio.ResampleQuality,
		WatchStems:      opts.watch,
		WatchSettle:     stems.DefaultSettle,
	}, bus, log.Named("project"))

	log.Debug("studio configured",
		zap.Int("sample_rate", cfg.Audio.SampleRate),
		zap.Int("tracks", len(cfg.Timeline.Tracks)),
		zap.String("backend", backend.Name()))

	return &studio{
		cfg:     cfg,
		log:     log,
		flush:   flush,
		bus:     bus,
		tl:      tl,
		runner:  runner,
		session: session,
	}, nil
}

// Close releases what newStudio acquired
func (s *studio) Close() {
	if err := s.session.Close(); err != nil {
		s.log.Warn("close session", zap.Error(err))
	}
	s.bus.Close()
	s.flush()
}
