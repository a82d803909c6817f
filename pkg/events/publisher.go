package events

import (
	"context"
	"errors"
)

// Publisher is the interface for publishing download events.
type Publisher interface {
	PublishDownload(ctx context.Context, event *DownloadEvent) error
}

// NoOpPublisher is a Publisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// PublishDownload is a no-op.
func (p *NoOpPublisher) PublishDownload(_ context.Context, _ *DownloadEvent) error {
	return nil
}

// CallbackPublisher is a Publisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *DownloadEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *DownloadEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishDownload calls the callback.
func (p *CallbackPublisher) PublishDownload(ctx context.Context, event *DownloadEvent) error {
	return p.callback(ctx, event)
}

// MultiPublisher fans an event out to several publishers. Every publisher is called;
// their errors are joined.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher creates a MultiPublisher, skipping nil entries.
func NewMultiPublisher(pubs ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range pubs {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// PublishDownload publishes to every publisher.
func (m *MultiPublisher) PublishDownload(ctx context.Context, event *DownloadEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.PublishDownload(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of wrapped publishers.
func (m *MultiPublisher) Len() int {
	return len(m.publishers)
}
