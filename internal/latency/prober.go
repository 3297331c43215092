package latency

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"os"
	"strings"
	"syscall"
	"time"

	"proxyscout/internal/storage/models"
)

const (
	// DefaultProxyPassword is the password shared by every credential of the pool.
	DefaultProxyPassword = "1"
	defaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Prober performs one measurement of one candidate against one endpoint.
// Implementations never fail: every error is reported in the outcome.
type Prober interface {
	Probe(ctx context.Context, candidate models.Candidate, endpoint string) models.ProbeOutcome
}

// HTTPProber sends a GET through the candidate acting as an HTTP proxy and
// measures the time to the first response byte. The body is never read, so
// the measurement covers connection, proxy handshake and TTFB only.
type HTTPProber struct {
	Timeout   time.Duration
	Password  string
	UserAgent string
}

// NewHTTPProber creates an HTTPProber.
func NewHTTPProber(timeout time.Duration, password string) *HTTPProber {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProber{
		Timeout:   timeout,
		Password:  password,
		UserAgent: defaultUserAgent,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, candidate models.Candidate, endpoint string) (outcome models.ProbeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = failed(endpoint, models.ErrorKindOther, fmt.Errorf("probe panicked: %v", r))
		}
	}()

	proxyURL, err := candidate.ProxyURL(p.Password)
	if err != nil {
		return failed(endpoint, models.ErrorKindOther, err)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyURL(proxyURL),
		DisableKeepAlives:     true,
		ResponseHeaderTimeout: p.Timeout,
		TLSHandshakeTimeout:   p.Timeout,
		// Pool relays are untrusted anyway; only timing matters here.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // Don't follow redirects.
		},
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	var firstByte time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() { firstByte = time.Now() },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(probeCtx, trace), http.MethodGet, endpoint, nil)
	if err != nil {
		return failed(endpoint, models.ErrorKindOther, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", p.UserAgent)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return failed(endpoint, classify(err), err)
	}
	elapsed := time.Since(start)
	if !firstByte.IsZero() {
		elapsed = firstByte.Sub(start)
	}
	resp.Body.Close()

	latencyMS := float64(elapsed.Microseconds()) / 1000
	status := resp.StatusCode
	outcome = models.ProbeOutcome{
		LatencyMS:  &latencyMS,
		StatusCode: &status,
		Endpoint:   endpoint,
	}
	if status < 200 || status >= 400 {
		outcome.ErrorKind = models.ErrorKindHTTPStatus
		outcome.Error = fmt.Sprintf("unexpected status code: %d", status)
		return outcome
	}
	outcome.Working = true
	return outcome
}

func failed(endpoint string, kind models.ErrorKind, err error) models.ProbeOutcome {
	return models.ProbeOutcome{
		Endpoint:  endpoint,
		ErrorKind: kind,
		Error:     err.Error(),
	}
}

// classify maps a transport error onto an ErrorKind. Timeouts win over
// everything else, protocol failures over plain connection failures.
func classify(err error) models.ErrorKind {
	var (
		netErr    net.Error
		opErr     *net.OpError
		dnsErr    *net.DNSError
		recordErr tls.RecordHeaderError
		certErr   *tls.CertificateVerificationError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return models.ErrorKindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return models.ErrorKindTimeout
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.As(err, &recordErr), errors.As(err, &certErr),
		strings.Contains(err.Error(), "malformed HTTP"):
		return models.ErrorKindProtocol
	case errors.As(err, &dnsErr), errors.As(err, &opErr),
		errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return models.ErrorKindConnection
	}
	return models.ErrorKindOther
}
