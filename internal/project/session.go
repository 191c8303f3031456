// Package project ties a source recording, its stems and the timeline
// together: opening files, reusing or producing stems, importing clips.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jscyril/stem_studio/api"
	"github.com/jscyril/stem_studio/internal/audio"
	"github.com/jscyril/stem_studio/internal/separate"
	"github.com/jscyril/stem_studio/internal/stems"
	"github.com/jscyril/stem_studio/internal/timeline"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
	"github.com/jscyril/stem_studio/pkg/events"
	"go.uber.org/zap"
)

// Options configures a Session
type Options struct {
	LoadWorkers     int
	ResampleQuality int
	WatchStems      bool
	WatchSettle     time.Duration
}

// Session is the open project. All methods are safe for concurrent use.
type Session struct {
	tl     *timeline.Timeline
	runner *separate.Runner
	loader *Loader
	opts   Options
	bus    *events.EventBus
	log    *zap.Logger

	mu      sync.Mutex
	source  string
	mix     *audio.Buffer
	info    api.ProjectInfo
	known   map[string]time.Time // stem files already on the timeline
	watcher *stems.Watcher
}

// NewSession creates a session over tl. runner, bus and log may be nil;
// without a runner Separate reports ErrSeparatorUnavailable.
func NewSession(tl *timeline.Timeline, runner *separate.Runner, opts Options, bus *events.EventBus, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		tl:     tl,
		runner: runner,
		loader: NewLoader(opts.LoadWorkers, tl.Options().SampleRate, opts.ResampleQuality),
		opts:   opts,
		bus:    bus,
		log:    log,
	}
}

// Timeline returns the session's timeline
func (s *Session) Timeline() *timeline.Timeline {
	return s.tl
}

// Info describes the open source
func (s *Session) Info() api.ProjectInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.info
	info.ClipCount = len(s.tl.Snapshot().Clips)
	return info
}

// Source returns the path of the open source, or "" when nothing is open
func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Open loads a source recording. If stems of it already exist next to it
// they become the clips; otherwise the source itself is placed on track 0.
// Nothing on the timeline changes when the file cannot be read.
func (s *Session) Open(ctx context.Context, path string) (api.ProjectInfo, error) {
	if !audio.IsSupported(path) {
		return api.ProjectInfo{}, &playerrors.LoadError{Path: path, Err: playerrors.ErrInvalidFormat}
	}
	mix, err := s.loader.LoadFile(path)
	if err != nil {
		s.log.Warn("cannot open source", zap.String("path", path), zap.Error(err))
		return api.ProjectInfo{}, err
	}
	meta := ReadMetadata(path)

	var clips []timeline.Clip
	known := make(map[string]time.Time)
	if found := stems.Existing(path); len(found) > 0 {
		clips, known = s.stemClips(ctx, found)
	}
	stemsLoaded := len(clips) > 0
	if !stemsLoaded {
		clips = []timeline.Clip{{Name: strings.ToUpper(baseName(path)), Track: 0, Buffer: mix}}
	}

	if err := ctx.Err(); err != nil {
		return api.ProjectInfo{}, err
	}
	placed, err := s.tl.Replace(clips, mix.Duration()+s.tl.Options().TailPadding)
	if err != nil {
		return api.ProjectInfo{}, err
	}

	info := api.ProjectInfo{
		SourcePath:  path,
		Title:       meta.Title,
		Artist:      meta.Artist,
		Duration:    mix.Duration(),
		StemsLoaded: stemsLoaded,
		ClipCount:   len(placed),
	}

	s.mu.Lock()
	s.source, s.mix, s.info, s.known = path, mix, info, known
	s.mu.Unlock()

	s.log.Info("project opened",
		zap.String("path", path),
		zap.Float64("duration", info.Duration),
		zap.Bool("stems", stemsLoaded),
		zap.Int("clips", len(placed)))
	s.publish(api.EventProjectLoaded, info)
	s.publish(api.EventClipsChanged, len(placed))

	if s.opts.WatchStems {
		s.watch(path)
	}
	return info, nil
}

// stemClips loads stem files into clips. Files that fail to load are skipped.
func (s *Session) stemClips(ctx context.Context, files []stems.File) ([]timeline.Clip, map[string]time.Time) {
	loaded, failed := s.loader.LoadAll(ctx, files)
	for _, err := range failed {
		s.log.Warn("skipping unreadable stem", zap.Error(err))
	}

	clips := make([]timeline.Clip, 0, len(loaded))
	known := make(map[string]time.Time, len(loaded))
	for _, l := range loaded {
		clips = append(clips, timeline.Clip{
			Name:   strings.ToUpper(l.File.Name),
			Track:  stems.TrackFor(l.File.Name, 0),
			Buffer: l.Buffer,
		})
		known[l.File.Path] = modTime(l.File.Path)
	}
	return clips, known
}

// ReloadStems replaces the clips with the stem files found next to the
// source. It fails with ErrNoStems when none could be loaded.
func (s *Session) ReloadStems(ctx context.Context) error {
	s.mu.Lock()
	source, mix := s.source, s.mix
	s.mu.Unlock()
	if source == "" {
		return playerrors.ErrNoSource
	}
	return s.commitStemFiles(ctx, source, mix, stems.Existing(source))
}

func (s *Session) commitStemFiles(ctx context.Context, source string, mix *audio.Buffer, files []stems.File) error {
	clips, known := s.stemClips(ctx, files)
	if len(clips) == 0 {
		return playerrors.ErrNoStems
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	placed, err := s.tl.Replace(clips, mix.Duration()+s.tl.Options().TailPadding)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.source == source {
		s.known = known
		s.info.StemsLoaded = true
	}
	s.mu.Unlock()

	s.log.Info("stems loaded", zap.String("source", source), zap.Int("clips", len(placed)))
	s.publish(api.EventClipsChanged, len(placed))
	return nil
}

// Separate runs the configured backend on the source in the background.
// When it succeeds the stems replace the clips on the timeline. The
// returned channel receives the final error, or nil, once.
func (s *Session) Separate(ctx context.Context) (<-chan error, error) {
	if s.runner == nil {
		return nil, playerrors.ErrSeparatorUnavailable
	}
	s.mu.Lock()
	source, mix := s.source, s.mix
	s.mu.Unlock()
	if source == "" {
		return nil, playerrors.ErrNoSource
	}

	results, err := s.runner.Start(ctx, source, mix)
	if err != nil {
		return nil, err
	}

	out := make(chan error, 1)
	go func() {
		defer close(out)
		res := <-results
		if res.Err != nil {
			out <- res.Err
			return
		}
		out <- s.commitStems(source, mix, res)
	}()
	return out, nil
}

func (s *Session) commitStems(source string, mix *audio.Buffer, res separate.Result) error {
	rate := s.tl.Options().SampleRate
	clips := make([]timeline.Clip, 0, len(res.Stems))
	for _, st := range res.Stems {
		buf, err := audio.Resample(st.Buffer, rate, s.opts.ResampleQuality)
		if err != nil {
			return fmt.Errorf("resample %s: %w", st.Name, err)
		}
		clips = append(clips, timeline.Clip{
			Name:   strings.ToUpper(st.Name),
			Track:  stems.TrackFor(st.Name, st.Index),
			Buffer: buf,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source != source {
		// another file was opened while separating
		return nil
	}
	placed, err := s.tl.Replace(clips, mix.Duration()+s.tl.Options().TailPadding)
	if err != nil {
		return err
	}
	s.known = make(map[string]time.Time, len(res.Paths))
	for _, p := range res.Paths {
		s.known[p] = modTime(p)
	}
	s.info.StemsLoaded = true

	s.publish(api.EventClipsChanged, len(placed))
	return nil
}

// ImportClip decodes a file and places it as a new clip
func (s *Session) ImportClip(path string, track int, start float64) (timeline.Clip, error) {
	if !audio.IsSupported(path) {
		return timeline.Clip{}, &playerrors.LoadError{Path: path, Err: playerrors.ErrInvalidFormat}
	}
	buf, err := s.loader.LoadFile(path)
	if err != nil {
		return timeline.Clip{}, err
	}
	clip, err := s.tl.Add(strings.ToUpper(baseName(path)), buf, track, start)
	if err != nil {
		return timeline.Clip{}, err
	}
	s.log.Info("clip imported", zap.String("path", path), zap.Int("track", clip.Track))
	s.publish(api.EventClipsChanged, len(s.tl.Snapshot().Clips))
	return clip, nil
}

// watch follows the source's stem files; the previous watcher is replaced
func (s *Session) watch(source string) {
	w, err := stems.Watch(source, s.opts.WatchSettle, s.log.Named("watch"))
	if err != nil {
		s.log.Warn("stem watcher unavailable", zap.Error(err))
		w = nil
	}

	s.mu.Lock()
	prev := s.watcher
	s.watcher = w
	s.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	if w != nil {
		go s.follow(source, w)
	}
}

func (s *Session) follow(source string, w *stems.Watcher) {
	for files := range w.Changes() {
		if !s.changed(source, files) {
			continue
		}
		s.log.Info("stem files changed on disk", zap.String("source", source))
		s.publish(api.EventStemsDetected, source)

		s.mu.Lock()
		mix := s.mix
		current := s.source == source
		s.mu.Unlock()
		if !current {
			return
		}
		if err := s.commitStemFiles(context.Background(), source, mix, files); err != nil && !errors.Is(err, playerrors.ErrNoStems) {
			s.log.Warn("reloading stems", zap.Error(err))
			s.publish(api.EventError, err)
		}
	}
}

// changed reports whether files differ from what is on the timeline
func (s *Session) changed(source string, files []stems.File) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source != source || len(files) != len(s.known) {
		return s.source == source
	}
	for _, f := range files {
		t, ok := s.known[f.Path]
		if !ok || !t.Equal(modTime(f.Path)) {
			return true
		}
	}
	return false
}

// Close stops watching stem files
func (s *Session) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		return w.Close()
	}
	return nil
}

func (s *Session) publish(t api.EventType, payload interface{}) {
	if s.bus != nil {
		s.bus.Publish(t, payload)
	}
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
