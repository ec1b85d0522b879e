package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// NetworkAPI is the set of calls the dashboard and CLI make. It is
// implemented by *Client and can be faked in tests.
type NetworkAPI interface {
	FetchDevices(ctx context.Context) ([]Device, error)
	FetchProviders(ctx context.Context) ([]Provider, error)
	SetProvide(ctx context.Context, clientID string, mode ProvideMode) (ProvideMode, error)
	AddDevice(ctx context.Context, code string) (AddDeviceResult, error)
	CreateShareCode(ctx context.Context, clientID, deviceName string) (string, error)
	AssociationStatus(ctx context.Context, codeType CodeType, code string) (AssociationStatus, error)
	ConfirmShare(ctx context.Context, code, networkName string) (ConfirmShareResult, error)
	FetchBalance(ctx context.Context) (Balance, error)
	CheckBalanceCode(ctx context.Context, secret string) (BalanceCode, error)
	RedeemBalanceCode(ctx context.Context, secret string) (TransferBalance, error)
}

// Ensure Client implements NetworkAPI at compile time.
var _ NetworkAPI = (*Client)(nil)

// Client talks to the BringYour HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	token     string
}

const (
	DefaultAPIURL         = "https://api.bringyour.com/"
	DefaultRequestTimeout = 10 * time.Second
	defaultUserAgent      = "byctl/0.1"
)

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(jwt string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(jwt) }
}

// WithTimeout sets the per-request timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for apiURL. An empty apiURL uses DefaultAPIURL.
func NewClient(apiURL string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: DefaultRequestTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Authenticated reports whether a token is configured.
func (c *Client) Authenticated() bool {
	return c != nil && c.token != ""
}

// LoginWithCode exchanges an auth code for a JWT.
func (c *Client) LoginWithCode(ctx context.Context, authCode string) (string, error) {
	authCode = strings.TrimSpace(authCode)
	if authCode == "" {
		return "", fmt.Errorf("%w: auth code required", ErrInvalidArgument)
	}
	var payload codeLoginResponse
	if err := c.do(ctx, http.MethodPost, "auth/code-login", codeLoginRequest{AuthCode: authCode}, &payload); err != nil {
		return "", err
	}
	if payload.ByJWT == "" {
		return "", &Error{Kind: KindParse, Endpoint: "auth/code-login", Err: fmt.Errorf("response has no jwt")}
	}
	return payload.ByJWT, nil
}

// LoginWithPassword logs in with a user auth (email or phone) and password.
func (c *Client) LoginWithPassword(ctx context.Context, userAuth, password string) (PasswordLogin, error) {
	userAuth = strings.TrimSpace(userAuth)
	if userAuth == "" || password == "" {
		return PasswordLogin{}, fmt.Errorf("%w: user and password required", ErrInvalidArgument)
	}
	var payload passwordLoginResponse
	req := passwordLoginRequest{UserAuth: userAuth, Password: password}
	if err := c.do(ctx, http.MethodPost, "auth/login-with-password", req, &payload); err != nil {
		return PasswordLogin{}, err
	}
	switch {
	case payload.Network != nil && payload.Network.ByJWT != "":
		return PasswordLogin{JWT: payload.Network.ByJWT, NetworkName: payload.Network.NetworkName}, nil
	case payload.VerificationRequired != nil:
		return PasswordLogin{VerificationRequired: true}, nil
	default:
		return PasswordLogin{}, &Error{Kind: KindParse, Endpoint: "auth/login-with-password", Err: fmt.Errorf("response has neither network nor verification")}
	}
}

// FetchDevices lists the clients of the network.
func (c *Client) FetchDevices(ctx context.Context) ([]Device, error) {
	var payload clientsResponse
	if err := c.authed(ctx, http.MethodGet, "network/clients", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Clients, nil
}

// FetchProviders returns the 24h provider stats of the network.
func (c *Client) FetchProviders(ctx context.Context) ([]Provider, error) {
	var payload providersResponse
	if err := c.authed(ctx, http.MethodGet, "stats/providers", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Providers, nil
}

// SetProvide changes the provide mode of a device and returns the mode the
// server recorded.
func (c *Client) SetProvide(ctx context.Context, clientID string, mode ProvideMode) (ProvideMode, error) {
	if err := ValidateClientID(clientID); err != nil {
		return 0, err
	}
	var payload setProvideResponse
	req := setProvideRequest{ClientID: strings.TrimSpace(clientID), ProvideMode: mode}
	if err := c.authed(ctx, http.MethodPost, "device/set-provide", req, &payload); err != nil {
		return 0, err
	}
	return payload.ProvideMode, nil
}

// AddDevice resolves a code entered by the user into a share or adopt code.
func (c *Client) AddDevice(ctx context.Context, code string) (AddDeviceResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return AddDeviceResult{}, fmt.Errorf("%w: code required", ErrInvalidArgument)
	}
	var payload addDeviceResponse
	if err := c.authed(ctx, http.MethodPost, "device/add", codeRequest{Code: code}, &payload); err != nil {
		return AddDeviceResult{}, err
	}
	if _, err := ParseCodeType(string(payload.CodeType)); err != nil {
		return AddDeviceResult{}, &Error{Kind: KindParse, Endpoint: "device/add", Err: err}
	}
	return payload.AddDeviceResult, nil
}

// CreateShareCode creates a code another network can use to adopt clientID.
func (c *Client) CreateShareCode(ctx context.Context, clientID, deviceName string) (string, error) {
	if err := ValidateClientID(clientID); err != nil {
		return "", err
	}
	var payload createShareCodeResponse
	req := createShareCodeRequest{ClientID: strings.TrimSpace(clientID), DeviceName: strings.TrimSpace(deviceName)}
	if err := c.authed(ctx, http.MethodPost, "device/create-share-code", req, &payload); err != nil {
		return "", err
	}
	return payload.ShareCode, nil
}

// AssociationStatus checks a pairing code against the share or adopt status
// endpoint, depending on codeType.
func (c *Client) AssociationStatus(ctx context.Context, codeType CodeType, code string) (AssociationStatus, error) {
	var path string
	switch codeType {
	case CodeTypeShare:
		path = "device/share-status"
	case CodeTypeAdopt:
		path = "device/adopt-status"
	default:
		return AssociationStatus{}, fmt.Errorf("%w: unknown code type %q", ErrInvalidArgument, codeType)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return AssociationStatus{}, fmt.Errorf("%w: code required", ErrInvalidArgument)
	}
	var payload associationStatusResponse
	if err := c.authed(ctx, http.MethodPost, path, statusRequest{ShareCode: code}, &payload); err != nil {
		return AssociationStatus{}, err
	}
	return payload.AssociationStatus, nil
}

// ConfirmShare accepts a share code under the given network name.
func (c *Client) ConfirmShare(ctx context.Context, code, networkName string) (ConfirmShareResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return ConfirmShareResult{}, fmt.Errorf("%w: code required", ErrInvalidArgument)
	}
	var payload confirmShareResponse
	req := confirmShareRequest{ShareCode: code, AssociatedNetworkName: strings.TrimSpace(networkName)}
	if err := c.authed(ctx, http.MethodPost, "device/confirm-share", req, &payload); err != nil {
		return ConfirmShareResult{}, err
	}
	return payload.ConfirmShareResult, nil
}

// FetchBalance returns the subscription balance.
func (c *Client) FetchBalance(ctx context.Context) (Balance, error) {
	var payload balanceResponse
	if err := c.authed(ctx, http.MethodGet, "subscription/balance", nil, &payload); err != nil {
		return Balance{}, err
	}
	return payload.Balance, nil
}

// CheckBalanceCode reports what a balance code is worth without redeeming it.
func (c *Client) CheckBalanceCode(ctx context.Context, secret string) (BalanceCode, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return BalanceCode{}, fmt.Errorf("%w: balance code required", ErrInvalidArgument)
	}
	var payload checkBalanceCodeResponse
	if err := c.authed(ctx, http.MethodPost, "subscription/check-balance-code", balanceCodeRequest{Secret: secret}, &payload); err != nil {
		return BalanceCode{}, err
	}
	if payload.Balance == nil {
		return BalanceCode{}, &Error{Kind: KindParse, Endpoint: "subscription/check-balance-code", Err: fmt.Errorf("response has no balance")}
	}
	return *payload.Balance, nil
}

// RedeemBalanceCode redeems a balance code and returns the new transfer balance.
func (c *Client) RedeemBalanceCode(ctx context.Context, secret string) (TransferBalance, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return TransferBalance{}, fmt.Errorf("%w: balance code required", ErrInvalidArgument)
	}
	var payload redeemBalanceCodeResponse
	if err := c.authed(ctx, http.MethodPost, "subscription/redeem-balance-code", balanceCodeRequest{Secret: secret}, &payload); err != nil {
		return TransferBalance{}, err
	}
	if payload.TransferBalance == nil {
		return TransferBalance{}, &Error{Kind: KindParse, Endpoint: "subscription/redeem-balance-code", Err: fmt.Errorf("response has no transfer balance")}
	}
	return *payload.TransferBalance, nil
}

func (c *Client) authed(ctx context.Context, method, path string, body, dest any) error {
	if !c.Authenticated() {
		return ErrNotAuthenticated
	}
	return c.do(ctx, method, path, body, dest)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: strings.TrimPrefix(path, "/")}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Endpoint: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Endpoint: path, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 400 {
		return statusError(path, resp, raw)
	}
	if dest == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &Error{Kind: KindParse, Endpoint: path, Status: resp.StatusCode, Err: err}
	}
	if failer, ok := dest.(remoteFailer); ok {
		if remote := failer.remoteFailure(); remote != nil {
			msg := strings.TrimSpace(remote.Message)
			if msg == "" {
				msg = "request failed"
			}
			return &Error{Kind: KindRemote, Endpoint: path, Status: resp.StatusCode, Message: msg}
		}
	}
	return nil
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = DefaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", apiURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
