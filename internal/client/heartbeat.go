package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const DefaultHeartbeatInterval = 5 * time.Second

// Ping checks the server's liveness endpoint once.
func Ping(ctx context.Context, httpClient *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/ping", nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping returned %s", ErrTransportUnavailable, resp.Status)
	}
	return nil
}

// Heartbeat pings the server every interval until ctx is done and reports each failure
// to onFailure.
func Heartbeat(ctx context.Context, baseURL string, interval time.Duration, onFailure func(error)) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	httpClient := &http.Client{Timeout: interval}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := Ping(ctx, httpClient, baseURL); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.WarnContext(ctx, "Heartbeat failed", "server.url", baseURL, "error", err)
				if onFailure != nil {
					onFailure(err)
				}
			}
		}
	}
}
