package steps

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/systemstart/step-runner/pkg/api"
)

// fetchStep downloads files into the workspace, making them visible to
// every later step.
type fetchStep struct {
	name   string
	cfg    *api.FetchConfig
	client *http.Client
}

func newFetchStep(name string, cfg *api.FetchConfig) Step {
	return &fetchStep{
		name:   name,
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (s *fetchStep) Name() string { return s.name }

func (s *fetchStep) Run(ctx context.Context, env *EnvContext) (*Result, error) {
	var summary bytes.Buffer

	for i, rawURL := range s.cfg.URLs {
		target, err := s.targetFor(i, rawURL)
		if err != nil {
			return nil, err
		}

		n, err := s.download(ctx, rawURL, filepath.Join(env.Dir(), target))
		if err != nil {
			return &Result{Output: summary.Bytes()}, fmt.Errorf("fetching %s: %w", rawURL, err)
		}

		slog.Info("fetched file", "step", s.name, "url", rawURL, "target", target, "bytes", n)
		fmt.Fprintf(&summary, "fetched %s -> %s (%d bytes)\n", rawURL, target, n)
	}

	return &Result{Output: summary.Bytes()}, nil
}

func (s *fetchStep) targetFor(i int, rawURL string) (string, error) {
	if len(s.cfg.To) > i && s.cfg.To[i] != "" {
		return s.cfg.To[i], nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url %s: %w", rawURL, err)
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return "", fmt.Errorf("cannot derive a filename from %s, use fetch.to", rawURL)
	}
	return base, nil
}

func (s *fetchStep) download(ctx context.Context, rawURL, target string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "step", s.name, "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return 0, fmt.Errorf("creating target directory: %w", err)
	}

	out, err := os.Create(target)
	if err != nil {
		return 0, fmt.Errorf("creating target file: %w", err)
	}

	n, copyErr := io.Copy(out, resp.Body)

	if closeErr := out.Close(); closeErr != nil {
		if copyErr != nil {
			return n, fmt.Errorf("writing target: %w", copyErr)
		}
		return n, fmt.Errorf("closing target: %w", closeErr)
	}
	if copyErr != nil {
		return n, fmt.Errorf("writing target: %w", copyErr)
	}
	return n, nil
}
