package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"go-watchdog/internal/models"
)

const (
	noteTimeout   = "Request timed out"
	noteCancelled = "Request cancelled"
	maxBodyDrain  = 64 << 10
)

// Prober checks active-mode endpoints with one GET per distinct URL.
type Prober struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	limit     int
}

// New returns a Prober whose requests are bounded by timeout. limit caps the
// number of in-flight probes; zero or less means no cap.
func New(timeout time.Duration, userAgent string, limit int) *Prober {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	return &Prober{
		client:    &http.Client{Transport: transport},
		userAgent: userAgent,
		timeout:   timeout,
		limit:     limit,
	}
}

// Probe checks every URL once and returns one outcome per distinct URL in
// first-seen order. A failing or slow probe never affects the others.
func (p *Prober) Probe(ctx context.Context, urls []string) []models.ProbeOutcome {
	unique := Dedupe(urls)
	outcomes := make([]models.ProbeOutcome, len(unique))

	var g errgroup.Group
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	for i, u := range unique {
		g.Go(func() error {
			outcomes[i] = p.check(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (p *Prober) check(ctx context.Context, url string) models.ProbeOutcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failure(url, "INVALID_URL")
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return failure(url, errorCode(ctx, err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return models.ProbeOutcome{
			URL:  url,
			OK:   true,
			Note: fmt.Sprintf("Ok. Endpoint %q responded with status code: %d", url, resp.StatusCode),
		}
	}
	return models.ProbeOutcome{
		URL:  url,
		OK:   false,
		Note: fmt.Sprintf("Not ok. Endpoint %q responded with status code: %d", url, resp.StatusCode),
	}
}

func failure(url, reason string) models.ProbeOutcome {
	return models.ProbeOutcome{
		URL:  url,
		OK:   false,
		Note: fmt.Sprintf("Not ok. Endpoint %q did not respond: %s", url, reason),
	}
}

// errorCode reduces a transport error to a short, stable reason so that
// repeated identical failures compact into one log row.
func errorCode(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return noteTimeout
	}
	if errors.Is(err, context.Canceled) {
		return noteCancelled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return noteTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "ENOTFOUND"
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "ECONNREFUSED"
	case errors.Is(err, syscall.ECONNRESET):
		return "ECONNRESET"
	case errors.Is(err, syscall.EHOSTUNREACH):
		return "EHOSTUNREACH"
	case errors.Is(err, syscall.ENETUNREACH):
		return "ENETUNREACH"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "ECONNRESET"
	}

	var certErr *tls.CertificateVerificationError
	var authErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &certErr) || errors.As(err, &authErr) || errors.As(err, &hostErr) || errors.As(err, &invalidErr) {
		return "CERT_INVALID"
	}

	return err.Error()
}

// Dedupe drops repeated and empty URLs, keeping first-seen order.
func Dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
