package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	xerrors "rewardjar-service/internal/pkg/errors"

	oauthjwt "golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/walletobjects/v1"
)

const (
	DefaultAPIBaseURL = "https://walletobjects.googleapis.com"
	DefaultTokenURL   = "https://oauth2.googleapis.com/token"
	walletScope       = "https://www.googleapis.com/auth/wallet_object.issuer"
)

// APIError is a non-2xx answer from the Wallet Objects API.
type APIError struct {
	StatusCode int
	Message    string
	Err        *googleapi.Error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google wallet api: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// Client talks to the Google Wallet REST API.
type Client struct {
	svc *walletobjects.Service
}

// NewClient builds a client authenticated as the configured service account.
func NewClient(ctx context.Context, cfg Config, baseURL string, timeout time.Duration) (*Client, error) {
	if cfg.ServiceAccountEmail == "" || cfg.PrivateKey == "" {
		return nil, fmt.Errorf("google wallet service account: %w", xerrors.ErrNotConfigured)
	}
	if _, err := ParsePrivateKey(cfg.PrivateKey); err != nil {
		return nil, err
	}

	conf := &oauthjwt.Config{
		Email:      cfg.ServiceAccountEmail,
		PrivateKey: []byte(NormalizePrivateKey(cfg.PrivateKey)),
		Scopes:     []string{walletScope},
		TokenURL:   DefaultTokenURL,
	}
	hc := conf.Client(ctx)
	hc.Timeout = timeout

	return NewClientWithHTTP(ctx, hc, baseURL)
}

// NewClientWithHTTP wraps an already authenticated http.Client.
func NewClientWithHTTP(ctx context.Context, hc *http.Client, baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	svc, err := walletobjects.NewService(ctx,
		option.WithHTTPClient(hc),
		option.WithEndpoint(strings.TrimRight(baseURL, "/")+"/"))
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet objects service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// PatchLoyaltyObject updates the remote object with obj's fields.
func (c *Client) PatchLoyaltyObject(ctx context.Context, obj LoyaltyObject) error {
	_, err := c.svc.Loyaltyobject.Patch(obj.ID, toAPIObject(obj)).Context(ctx).Do()
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return &APIError{StatusCode: gerr.Code, Message: msg, Err: gerr}
	}
	return fmt.Errorf("google wallet patch failed: %w", err)
}

func toAPIObject(obj LoyaltyObject) *walletobjects.LoyaltyObject {
	out := &walletobjects.LoyaltyObject{
		Id:          obj.ID,
		ClassId:     obj.ClassID,
		State:       obj.State,
		AccountId:   obj.AccountID,
		AccountName: obj.AccountName,
		LoyaltyPoints: &walletobjects.LoyaltyPoints{
			Label:   obj.LoyaltyPoints.Label,
			Balance: &walletobjects.LoyaltyPointsBalance{String: obj.LoyaltyPoints.Balance.String},
		},
		Barcode: &walletobjects.Barcode{
			Type:          obj.Barcode.Type,
			Value:         obj.Barcode.Value,
			AlternateText: obj.Barcode.AlternateText,
		},
	}
	for _, m := range obj.TextModules {
		out.TextModulesData = append(out.TextModulesData, &walletobjects.TextModuleData{
			Id:     m.ID,
			Header: m.Header,
			Body:   m.Body,
		})
	}
	if obj.ValidTime != nil {
		out.ValidTimeInterval = &walletobjects.TimeInterval{
			End: &walletobjects.DateTime{Date: obj.ValidTime.End.Date},
		}
	}
	return out
}
