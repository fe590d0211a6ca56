// Package network implements the download capability over HTTP.
package network

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aretw0/multipage/pkg/ports"
)

// Downloader implements ports.Downloader. The body is streamed into a
// temporary file next to dest and renamed once complete, so dest never holds
// a partial download.
type Downloader struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.Downloader = (*Downloader)(nil)

// Option configures a Downloader.
type Option func(*Downloader)

// WithClient sets the HTTP client. Timeouts belong on the task, not the client.
func WithClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.client = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) {
		d.logger = l
	}
}

// New creates a Downloader using http.DefaultClient.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		client: http.DefaultClient,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.Status)
}

// Download fetches url into dest, reporting progress after every write.
func (d *Downloader) Download(ctx context.Context, url, dest string, progress ports.ProgressFunc) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: url, Status: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := &progressWriter{w: tmp, total: resp.ContentLength, report: progress}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	d.logger.Debug("download complete", "url", url, "dest", dest, "bytes", n)
	return nil
}

type progressWriter struct {
	w      io.Writer
	done   int64
	total  int64
	report ports.ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	if p.report != nil {
		p.report(p.done, p.total)
	}
	return n, err
}
