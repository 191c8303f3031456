package project

import (
	"context"
	"sort"
	"sync"

	"github.com/jscyril/stem_studio/internal/audio"
	"github.com/jscyril/stem_studio/internal/stems"
	playerrors "github.com/jscyril/stem_studio/pkg/errors"
)

// Loaded is a stem file decoded at the project rate
type Loaded struct {
	File   stems.File
	Buffer *audio.Buffer
}

// Loader decodes stem files concurrently using a worker pool and resamples
// them to the project rate
type Loader struct {
	workers    int
	sampleRate int
	quality    int
}

// NewLoader creates a loader
func NewLoader(workers, sampleRate, quality int) *Loader {
	if workers <= 0 {
		workers = 4 // Default worker count
	}
	if quality <= 0 {
		quality = audio.DefaultResampleQuality
	}
	return &Loader{workers: workers, sampleRate: sampleRate, quality: quality}
}

// Load decodes files concurrently and returns channels for results and errors.
// Both channels are closed once every file was handled or ctx is done.
func (l *Loader) Load(ctx context.Context, files []stems.File) (<-chan Loaded, <-chan error) {
	results := make(chan Loaded, len(files))
	errors := make(chan error, len(files))
	queue := make(chan stems.File, len(files))

	for _, f := range files {
		queue <- f
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < min(l.workers, len(files)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range queue {
				select {
				case <-ctx.Done():
					return
				default:
				}

				buf, err := l.LoadFile(f.Path)
				if err != nil {
					errors <- err
					continue
				}
				results <- Loaded{File: f, Buffer: buf}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
		close(errors)
	}()

	return results, errors
}

// LoadAll is Load collected into slices. Results are in stem order.
func (l *Loader) LoadAll(ctx context.Context, files []stems.File) ([]Loaded, []error) {
	results, errs := l.Load(ctx, files)

	var loaded []Loaded
	for r := range results {
		loaded = append(loaded, r)
	}
	var failed []error
	for err := range errs {
		failed = append(failed, err)
	}

	sort.Slice(loaded, func(i, j int) bool {
		return stems.TrackFor(loaded[i].File.Name, len(stems.Order)) < stems.TrackFor(loaded[j].File.Name, len(stems.Order))
	})
	return loaded, failed
}

// LoadFile decodes one file at the project rate
func (l *Loader) LoadFile(filePath string) (*audio.Buffer, error) {
	buf, err := audio.DecodeFile(filePath)
	if err != nil {
		return nil, err
	}
	resampled, err := audio.Resample(buf, l.sampleRate, l.quality)
	if err != nil {
		return nil, &playerrors.LoadError{Path: filePath, Err: err}
	}
	return resampled, nil
}
