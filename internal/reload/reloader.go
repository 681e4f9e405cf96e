// Package reload keeps the served weights in step with the weights file.
// Every reload parses and sanitizes a complete document before swapping it
// in; a failed load leaves the active config untouched.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/PriceEngine/internal/hermes"
	"github.com/MikeSquared-Agency/PriceEngine/internal/metrics"
	"github.com/MikeSquared-Agency/PriceEngine/internal/pricing"
)

const (
	TriggerFile  = "file"
	TriggerAdmin = "admin"
	TriggerEvent = "event"
)

type Reloader struct {
	holder   *pricing.Holder
	path     string
	absPath  string
	interval time.Duration
	hermes   hermes.Client
	metrics  *metrics.Recorder
	logger   *slog.Logger

	mu      sync.Mutex
	modTime time.Time
	size    int64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New returns a reloader for path. An interval of zero disables polling.
// h and m may be nil.
func New(holder *pricing.Holder, path string, interval time.Duration, h hermes.Client, m *metrics.Recorder, logger *slog.Logger) *Reloader {
	r := &Reloader{
		holder:   holder,
		path:     path,
		absPath:  absPath(path),
		interval: interval,
		hermes:   h,
		metrics:  m,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	if info, err := os.Stat(path); err == nil {
		r.modTime, r.size = info.ModTime(), info.Size()
	}
	return r
}

func (r *Reloader) Start(ctx context.Context) {
	if r.interval > 0 {
		r.wg.Add(1)
		go r.watchLoop(ctx)
	}
	if r.hermes != nil {
		r.subscribe()
	}
}

func (r *Reloader) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Reloader) watchLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.changed() {
				_, _, _ = r.ReloadNow(TriggerFile)
			}
		}
	}
}

// changed reports whether the file differs from the last one loaded.
func (r *Reloader) changed() bool {
	info, err := os.Stat(r.path)
	if err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return !info.ModTime().Equal(r.modTime) || info.Size() != r.size
}

func (r *Reloader) subscribe() {
	err := hermes.SubscribeModelTrained(r.hermes, r.logger, func(evt hermes.ModelTrainedEvent) {
		if evt.Path != "" && absPath(evt.Path) != r.absPath {
			r.logger.Debug("model trained for another weights file", "path", evt.Path)
			return
		}
		r.logger.Info("model trained event received", "model_version", evt.ModelVersion)
		_, _, _ = r.ReloadNow(TriggerEvent)
	})
	if err != nil {
		r.logger.Warn("failed to subscribe to model events", "error", err)
	}
}

// ReloadNow loads the weights file and swaps it in if its fingerprint differs
// from the active one. It returns the active snapshot and whether it changed.
func (r *Reloader) ReloadNow(trigger string) (*pricing.Snapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, changed, err := r.reload(trigger)
	if r.metrics != nil {
		r.metrics.RecordReload(trigger, err)
	}
	if err != nil {
		r.logger.Warn("weights reload failed, keeping active config",
			"trigger", trigger, "path", r.path, "error", err)
		return r.holder.Load(), false, err
	}
	if !changed {
		return snap, false, nil
	}

	r.logger.Info("weights reloaded",
		"trigger", trigger, "model_version", snap.Weights.ModelVersion, "fingerprint", snap.Fingerprint)
	if r.metrics != nil {
		r.metrics.SetActiveWeights(snap.Weights.ModelVersion, snap.Fingerprint)
	}
	if r.hermes != nil {
		_ = r.hermes.Publish(hermes.SubjectWeightsReloaded, hermes.WeightsReloadedEvent{
			ModelVersion: snap.Weights.ModelVersion,
			Fingerprint:  snap.Fingerprint,
			Trigger:      trigger,
			Timestamp:    time.Now().UTC(),
		})
	}
	return snap, true, nil
}

func (r *Reloader) reload(trigger string) (*pricing.Snapshot, bool, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		return nil, false, fmt.Errorf("stat weights: %w", err)
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, false, fmt.Errorf("read weights: %w", err)
	}
	r.modTime, r.size = info.ModTime(), info.Size()

	w, err := pricing.ParseWeights(data)
	if err != nil {
		return nil, false, err
	}

	current := r.holder.Load()
	if current != nil && current.Fingerprint == w.Fingerprint() {
		return current, false, nil
	}
	r.holder.Swap(w, r.path+" ("+trigger+")")
	return r.holder.Load(), true, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
