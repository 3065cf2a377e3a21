package backend

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"nexus/log"
)

// tracedClient records connection timings for every request it sends.
type tracedClient struct {
	client *http.Client
}

func newTracedClient(timeout time.Duration) *tracedClient {
	return &tracedClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type tracedResponse struct {
	Body       []byte
	StatusCode int
	Metrics    log.RequestMetrics
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

func (c *tracedClient) do(req *http.Request) (*tracedResponse, error) {
	var m log.RequestMetrics
	var dnsStart, tcpStart, tlsStart, wrote time.Time

	trace := &httptrace.ClientTrace{
		GotConn:           func(info httptrace.GotConnInfo) { m.Reused = info.Reused },
		DNSStart:          func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { m.DNSMs = ms(time.Since(dnsStart)) },
		ConnectStart:      func(_, _ string) { tcpStart = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { m.TCPMs = ms(time.Since(tcpStart)) },
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone:  func(tls.ConnectionState, error) { m.TLSMs = ms(time.Since(tlsStart)) },
		WroteRequest:      func(httptrace.WroteRequestInfo) { wrote = time.Now() },
		GotFirstResponseByte: func() {
			if !wrote.IsZero() {
				m.TTFBMs = ms(time.Since(wrote))
			}
		},
	}

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	m.TotalMs = ms(time.Since(start))
	return &tracedResponse{Body: body, StatusCode: resp.StatusCode, Metrics: m}, nil
}
