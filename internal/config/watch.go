package config

import (
	"context"
	"os"
	"time"
)

// ProvidersWatcher polls providers.yaml and re-applies it when the file changes.
type ProvidersWatcher struct {
	Path     string
	Interval time.Duration
	OnUpdate func(*ProvidersConfig)
	// OnError receives reload failures; the previous config stays in effect.
	OnError func(error)

	lastMod time.Time
}

// Start loads the file once synchronously, then polls until ctx is done.
func (w *ProvidersWatcher) Start(ctx context.Context) error {
	if w.Path == "" {
		w.Path = "configs/providers.yaml"
	}
	if w.Interval <= 0 {
		w.Interval = 30 * time.Second
	}

	info, err := os.Stat(w.Path)
	if err != nil {
		return err
	}
	cfg, err := LoadProvidersConfig(w.Path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	w.emit(cfg)

	go w.loop(ctx)
	return nil
}

func (w *ProvidersWatcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll reloads the file if its mtime moved forward.
func (w *ProvidersWatcher) poll() {
	info, err := os.Stat(w.Path)
	if err != nil || !info.ModTime().After(w.lastMod) {
		return
	}

	cfg, err := LoadProvidersConfig(w.Path)
	if err != nil {
		if w.OnError != nil {
			w.OnError(err)
		}
		return
	}
	w.lastMod = info.ModTime()
	w.emit(cfg)
}

func (w *ProvidersWatcher) emit(cfg *ProvidersConfig) {
	if w.OnUpdate != nil {
		w.OnUpdate(cfg)
	}
}
