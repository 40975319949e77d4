// Package link answers whether the collector is currently reachable.
//
// Reachability is a plain TCP dial to the collector's host and port. It is a
// cheap precondition check for a flush, not a guarantee that the following
// POST will succeed.
package link

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"
)

// PollInterval is how often WaitConnected retries the probe.
const PollInterval = 500 * time.Millisecond

// hostPort extracts a dialable host:port from an http(s) URL, appending the
// scheme's default port when the URL has none.
func hostPort(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}
	return host, nil
}

// Probe dials the collector host once, bounded by timeout.
func Probe(ctx context.Context, endpoint string, timeout time.Duration) error {
	addr, err := hostPort(endpoint)
	if err != nil {
		return err
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn.Close()
}

// WaitConnected probes every PollInterval until the collector answers or
// timeout elapses. It reports whether a probe succeeded.
func WaitConnected(ctx context.Context, endpoint string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t := time.NewTicker(PollInterval)
	defer t.Stop()

	for {
		if err := Probe(ctx, endpoint, PollInterval); err == nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
		}
	}
}

// Checker returns a function suitable for shipper.Config.Connected.
func Checker(endpoint string, timeout time.Duration) func(context.Context) bool {
	return func(ctx context.Context) bool {
		return Probe(ctx, endpoint, timeout) == nil
	}
}
