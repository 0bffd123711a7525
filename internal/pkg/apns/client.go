// Package apns sends the empty "pass updated" notifications Apple Wallet
// expects when a registered pass changes.
package apns

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
)

const (
	ProductionHost  = apns2.HostProduction
	DevelopmentHost = apns2.HostDevelopment
)

// ErrUnregistered means the device token is no longer valid and the device
// should be dropped.
var ErrUnregistered = errors.New("apns: device token is no longer active")

// Config locates the pass type certificate. CertFile may be a .p12 bundle or
// a PEM file holding both certificate and key; KeyFile is only needed when
// the key lives in a separate PEM file.
type Config struct {
	Host     string
	CertFile string
	KeyFile  string
	Password string
	Timeout  time.Duration
}

type Client struct {
	client *apns2.Client
}

// NewClient loads the pass type certificate used as the TLS client identity.
func NewClient(cfg Config) (*Client, error) {
	cert, err := loadCertificate(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load apns certificate: %w", err)
	}

	client := apns2.NewClient(cert)
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	if cfg.Host != "" {
		client.Host = strings.TrimRight(cfg.Host, "/")
	}
	return &Client{client: client}, nil
}

func loadCertificate(cfg Config) (tls.Certificate, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(cfg.CertFile), ".p12"):
		return certificate.FromP12File(cfg.CertFile, cfg.Password)
	case cfg.KeyFile == "" || cfg.KeyFile == cfg.CertFile:
		return certificate.FromPemFile(cfg.CertFile, cfg.Password)
	}
	return tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
}

// NewClientWithHTTP sends through hc to host without a client certificate.
func NewClientWithHTTP(hc *http.Client, host string) *Client {
	if host == "" {
		host = ProductionHost
	}
	return &Client{client: &apns2.Client{HTTPClient: hc, Host: strings.TrimRight(host, "/")}}
}

// PushPassUpdate notifies one device that passes of topic changed.
func (c *Client) PushPassUpdate(ctx context.Context, pushToken, topic string) error {
	resp, err := c.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: pushToken,
		Topic:       topic,
		PushType:    apns2.PushTypeBackground,
		Priority:    apns2.PriorityLow,
		Payload:     []byte("{}"),
	})
	if err != nil {
		return fmt.Errorf("apns push failed: %w", err)
	}
	if resp.Sent() {
		return nil
	}

	switch {
	case resp.StatusCode == http.StatusGone,
		resp.Reason == apns2.ReasonUnregistered,
		resp.Reason == apns2.ReasonBadDeviceToken:
		return fmt.Errorf("%w (%s)", ErrUnregistered, resp.Reason)
	}
	reason := resp.Reason
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("apns push rejected: status %d: %s", resp.StatusCode, reason)
}
