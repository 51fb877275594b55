package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrInvalidAddress = errors.New("invalid shipping address")
	ErrUndeliverable  = errors.New("address is not deliverable")
	ErrUnsupported    = errors.New("only US shipping addresses are supported")
	ErrUpstream       = errors.New("address validation unavailable")
)

// Validator standardizes a shipping address or explains why it cannot be used.
type Validator interface {
	Validate(ctx context.Context, addr domain.Address) (*domain.Address, error)
}

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	cb           *gobreaker.CircuitBreaker[*domain.Address]
	now          func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb: gobreaker.NewCircuitBreaker[*domain.Address](gobreaker.Settings{
			Name:        "usps",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrInvalidAddress) || errors.Is(err, ErrUndeliverable)
			},
		}),
		now: time.Now,
	}
}

type addressResponse struct {
	Address struct {
		StreetAddress    string `json:"streetAddress"`
		SecondaryAddress string `json:"secondaryAddress"`
		City             string `json:"city"`
		State            string `json:"state"`
		ZIPCode          string `json:"ZIPCode"`
		ZIPPlus4         string `json:"ZIPPlus4"`
	} `json:"address"`
	AdditionalInfo struct {
		DPVConfirmation string `json:"DPVConfirmation"`
	} `json:"additionalInfo"`
}

// Validate returns the USPS-standardized form of addr.
func (c *Client) Validate(ctx context.Context, addr domain.Address) (*domain.Address, error) {
	if addr.Country != "" && !strings.EqualFold(addr.Country, "US") && !strings.EqualFold(addr.Country, "USA") {
		return nil, ErrUnsupported
	}
	out, err := c.cb.Execute(func() (*domain.Address, error) {
		return c.lookup(ctx, addr)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return out, err
}

func (c *Client) lookup(ctx context.Context, addr domain.Address) (*domain.Address, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("streetAddress", addr.Line1)
	if addr.Line2 != "" {
		q.Set("secondaryAddress", addr.Line2)
	}
	q.Set("city", addr.City)
	q.Set("state", strings.ToUpper(addr.State))
	q.Set("ZIPCode", addr.ZIP)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/addresses/v3/address?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build address request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, readMessage(resp.Body))
	case resp.StatusCode == http.StatusUnauthorized:
		c.resetToken()
		return nil, fmt.Errorf("%w: token rejected", ErrUpstream)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var body addressResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode address: %v", ErrUpstream, err)
	}
	if body.AdditionalInfo.DPVConfirmation == "N" {
		return nil, ErrUndeliverable
	}

	return &domain.Address{
		Name:     addr.Name,
		Line1:    body.Address.StreetAddress,
		Line2:    body.Address.SecondaryAddress,
		City:     body.Address.City,
		State:    body.Address.State,
		ZIP:      body.Address.ZIPCode,
		ZIPPlus4: body.Address.ZIPPlus4,
		Country:  "US",
	}, nil
}

// expiresIn accepts both numeric and quoted lifetimes.
type expiresIn int64

func (e *expiresIn) UnmarshalJSON(b []byte) error {
	n, err := strconv.ParseInt(strings.Trim(string(b), `"`), 10, 64)
	if err != nil {
		return err
	}
	*e = expiresIn(n)
	return nil
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   expiresIn `json:"expires_in"`
}

// accessToken returns the cached OAuth token, refreshing it a minute before expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry) {
		return c.token, nil
	}

	payload, err := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"grant_type":    "client_credentials",
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/v3/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token status %d", ErrUpstream, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: invalid token response", ErrUpstream)
	}

	lifetime := time.Duration(tok.ExpiresIn) * time.Second
	if lifetime > 2*time.Minute {
		lifetime -= time.Minute
	}
	c.token = tok.AccessToken
	c.expiry = c.now().Add(lifetime)
	return c.token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func readMessage(r io.Reader) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(string(data))
}
