package ics

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

// Feed serves the body of one ICS URL, keeping the last successful download
// in memory for TTL so that bursts of API calls share a single fetch.
type Feed struct {
	fetcher *Fetcher
	url     string
	ttl     time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	body      []byte
	updatedAt time.Time
}

// NewFeed creates a Feed. ttl <= 0 disables the in-memory snapshot.
func NewFeed(fetcher *Fetcher, url string, ttl time.Duration) *Feed {
	return &Feed{
		fetcher: fetcher,
		url:     url,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Body returns the feed payload, fetching it when the snapshot is stale.
func (f *Feed) Body(ctx context.Context) ([]byte, error) {
	if f.ttl > 0 {
		f.mu.RLock()
		body, updatedAt := f.body, f.updatedAt
		f.mu.RUnlock()
		if body != nil && f.now().Sub(updatedAt) < f.ttl {
			return body, nil
		}
	}
	return f.Refresh(ctx)
}

// Refresh fetches the feed unconditionally and updates the snapshot.
func (f *Feed) Refresh(ctx context.Context) ([]byte, error) {
	res, err := f.fetcher.Fetch(ctx, f.url)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.body = res.Body
	f.updatedAt = f.now()
	f.mu.Unlock()

	return res.Body, nil
}

// Events fetches the feed and normalizes it for the week containing ref.
func (f *Feed) Events(ctx context.Context, ref time.Time) (model.EventList, error) {
	body, err := f.Body(ctx)
	if err != nil {
		return nil, err
	}
	return Normalize(body, ref)
}

// StartRefresh re-fetches the feed on a cron schedule (standard 5-field
// spec, e.g. "*/15 * * * *") until ctx is done. An empty spec does nothing.
func (f *Feed) StartRefresh(ctx context.Context, spec string) error {
	if spec == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, f.fetcher.client.Timeout+5*time.Second)
		defer cancel()

		if _, err := f.Refresh(refreshCtx); err != nil {
			appLog.Error("scheduled feed refresh failed", err, "url", redactURL(f.url))
			return
		}
		appLog.Debug("scheduled feed refresh done", "url", redactURL(f.url))
	})
	if err != nil {
		return err
	}

	c.Start()
	appLog.Info("feed refresh scheduled", "cron", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
