package weather

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"

	"github.com/yegors/co-wx/pkg/logger"
)

// Response is the status and body of a completed HTTP exchange
type Response struct {
	StatusCode int
	Body       string
}

// Session is the connection handle of a single fetch. Settings changed on a
// session, such as disabling the revocation check, do not outlive it.
type Session interface {
	Get(ctx context.Context, url string) (Response, error)
	DisableRevocationCheck()
	Close()
}

// Requester opens sessions for the worker
type Requester interface {
	NewSession() Session
}

// ClientOption customizes a Client
type ClientOption func(*Client)

// WithTLSConfig sets the TLS configuration every session starts from
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(c *Client) {
		c.tlsConfig = cfg
	}
}

// Client handles HTTP requests to the METAR data server
type Client struct {
	userAgent       string
	timeouts        TimeoutSource
	checkRevocation bool
	maxBodyBytes    int64
	tlsConfig       *tls.Config
	logger          *logger.Logger
}

// NewClient creates a new weather API client
func NewClient(config Config, timeouts TimeoutSource, log *logger.Logger, opts ...ClientOption) *Client {
	if timeouts == nil {
		timeouts = config
	}
	maxBody := config.MaxResponseBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultConfig().MaxResponseBodyBytes
	}
	c := &Client{
		userAgent:       config.UserAgent,
		timeouts:        timeouts,
		checkRevocation: config.CheckRevocation,
		maxBodyBytes:    maxBody,
		logger:          log.Named("weather-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSession creates a fresh transport so that one fetch's mitigations
// don't leak into the next. The timeout is read once per session.
func (c *Client) NewSession() Session {
	var tlsCfg *tls.Config
	if c.tlsConfig != nil {
		tlsCfg = c.tlsConfig.Clone()
	} else {
		tlsCfg = &tls.Config{}
	}
	rc := newRevocationCheck(c.checkRevocation)
	tlsCfg.VerifyConnection = rc.verify

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsCfg

	timeout := c.timeouts.NetworkTimeout()
	c.logger.Debug("Opening weather session",
		logger.Duration("timeout", timeout),
		logger.Bool("check_revocation", c.checkRevocation))

	return &httpSession{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		transport:  transport,
		revocation: rc,
		userAgent:  c.userAgent,
		maxBody:    c.maxBodyBytes,
	}
}

type httpSession struct {
	client     *http.Client
	transport  *http.Transport
	revocation *revocationCheck
	userAgent  string
	maxBody    int64
}

func (s *httpSession) Get(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("error creating weather request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("error making request to weather API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return Response{}, fmt.Errorf("error reading weather response: %w", err)
	}
	if int64(len(body)) > s.maxBody {
		return Response{}, fmt.Errorf("weather response exceeds %d bytes", s.maxBody)
	}

	return Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

func (s *httpSession) DisableRevocationCheck() {
	s.revocation.disable()
}

func (s *httpSession) Close() {
	s.transport.CloseIdleConnections()
}
