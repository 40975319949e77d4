package link

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"net/url"
	"time"
)

// CertStatus describes the leaf certificate presented by an https collector.
type CertStatus struct {
	Issuer   string
	NotAfter time.Time
	DaysLeft int
	Status   string // valid | expiring | expired
}

// CheckCert dials the collector over TLS and inspects its leaf certificate.
// It returns nil, nil for plain-HTTP endpoints.
func CheckCert(ctx context.Context, endpoint string, insecure bool, timeout time.Duration) (*CertStatus, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" {
		return nil, nil
	}
	addr, err := hostPort(endpoint)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    &tls.Config{InsecureSkipVerify: insecure}, //nolint:gosec
	}
	nc, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tls dial %s: %w", addr, err)
	}
	conn := nc.(*tls.Conn)
	defer conn.Close()

	peers := conn.ConnectionState().PeerCertificates
	if len(peers) == 0 {
		return nil, fmt.Errorf("tls dial %s: no peer certificate", addr)
	}
	leaf := peers[0]
	days := leaf.NotAfter.Sub(time.Now()).Hours() / 24

	cs := &CertStatus{
		Issuer:   leaf.Issuer.CommonName,
		NotAfter: leaf.NotAfter.UTC(),
		DaysLeft: int(math.Floor(days)),
	}
	switch {
	case days <= 0:
		cs.Status = "expired"
	case days <= 30:
		cs.Status = "expiring"
	default:
		cs.Status = "valid"
	}
	return cs, nil
}
