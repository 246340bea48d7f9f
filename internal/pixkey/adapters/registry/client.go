// Package registry reaches the national key directory over JSON/HTTP.
//
// Client speaks the wire protocol and normalizes every failure into a
// *ports.RegistryError. Resilient wraps any gateway with a circuit breaker,
// tracing spans and call metrics.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"pixkeys/internal/pixkey/models"
	"pixkeys/internal/pixkey/ports"
	"pixkeys/pkg/requestcontext"
)

type Config struct {
	BaseURL string
	ISPB    string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	ispb    string
	http    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("registry base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse registry base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ispb:    cfg.ISPB,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// errorBody is what the registry returns on non-2xx responses.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (c *Client) CreateKey(ctx context.Context, req ports.CreateKeyRequest) (*ports.RegisteredKey, error) {
	var out ports.RegisteredKey
	if err := c.do(ctx, "CreateKey", http.MethodPost, "/keys", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteKey(ctx context.Context, req ports.DeleteKeyRequest) error {
	path := "/keys/" + url.PathEscape(req.Value)
	return c.do(ctx, "DeleteKey", http.MethodDelete, path, req, nil)
}

func (c *Client) CreateOwnershipClaim(ctx context.Context, req ports.ClaimRequest) (*models.Claim, error) {
	return c.claim(ctx, "CreateOwnershipClaim", http.MethodPost, "/claims/ownership", req)
}

func (c *Client) CreatePortabilityClaim(ctx context.Context, req ports.ClaimRequest) (*models.Claim, error) {
	return c.claim(ctx, "CreatePortabilityClaim", http.MethodPost, "/claims/portability", req)
}

func (c *Client) CancelOwnershipClaim(ctx context.Context, req ports.ClaimActionRequest) (*models.Claim, error) {
	return c.claimAction(ctx, "CancelOwnershipClaim", "cancel", req)
}

func (c *Client) CancelPortabilityClaim(ctx context.Context, req ports.ClaimActionRequest) (*models.Claim, error) {
	return c.claimAction(ctx, "CancelPortabilityClaim", "cancel", req)
}

func (c *Client) ConfirmPortabilityClaim(ctx context.Context, req ports.ClaimActionRequest) (*models.Claim, error) {
	return c.claimAction(ctx, "ConfirmPortabilityClaim", "confirm", req)
}

func (c *Client) CloseClaim(ctx context.Context, req ports.ClaimActionRequest) (*models.Claim, error) {
	return c.claimAction(ctx, "CloseClaim", "close", req)
}

func (c *Client) DenyClaim(ctx context.Context, req ports.ClaimActionRequest) (*models.Claim, error) {
	return c.claimAction(ctx, "DenyClaim", "deny", req)
}

func (c *Client) FinishClaim(ctx context.Context, req ports.ClaimActionRequest) (*models.Claim, error) {
	return c.claimAction(ctx, "FinishClaim", "finish", req)
}

func (c *Client) ListClaims(ctx context.Context, req ports.ListClaimsRequest) (*ports.ClaimList, error) {
	q := url.Values{
		"page": {strconv.Itoa(req.Page)},
		"size": {strconv.Itoa(req.Size)},
		"ispb": {c.ispb},
	}
	if !req.From.IsZero() {
		q.Set("from", req.From.UTC().Format(time.RFC3339))
	}
	if !req.To.IsZero() {
		q.Set("to", req.To.UTC().Format(time.RFC3339))
	}
	var out ports.ClaimList
	if err := c.do(ctx, "ListClaims", http.MethodGet, "/claims?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DecodeKey(ctx context.Context, req ports.DecodeKeyRequest) (*models.DecodeResult, error) {
	var out models.DecodeResult
	if err := c.do(ctx, "DecodeKey", http.MethodPost, "/keys/decode", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) claim(ctx context.Context, op, method, path string, body any) (*models.Claim, error) {
	var out models.Claim
	if err := c.do(ctx, op, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) claimAction(ctx context.Context, op, action string, req ports.ClaimActionRequest) (*models.Claim, error) {
	path := fmt.Sprintf("/claims/%s/%s", url.PathEscape(req.ClaimID.String()), action)
	return c.claim(ctx, op, http.MethodPost, path, req)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return ports.NewRegistryError(ports.RegistryInvalidFormat, op, "encode request", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return ports.NewRegistryError(ports.RegistryInvalidFormat, op, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Participant-ISPB", c.ispb)
	if rid := requestcontext.RequestID(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeFailure(op, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ports.NewRegistryError(ports.RegistryInvalidFormat, op, "decode response", err)
	}
	return nil
}

var kindByName = map[string]ports.RegistryErrorKind{
	string(ports.RegistryOffline):            ports.RegistryOffline,
	string(ports.RegistryOwnedByThirdPerson): ports.RegistryOwnedByThirdPerson,
	string(ports.RegistryOwnedBySamePerson):  ports.RegistryOwnedBySamePerson,
	string(ports.RegistryLockedByClaim):      ports.RegistryLockedByClaim,
	string(ports.RegistryDuplicate):          ports.RegistryDuplicate,
	string(ports.RegistryMaxKeysReached):     ports.RegistryMaxKeysReached,
	string(ports.RegistryOperationTimeout):   ports.RegistryOperationTimeout,
	string(ports.RegistryInvalidFormat):      ports.RegistryInvalidFormat,
	string(ports.RegistryNotFound):           ports.RegistryNotFound,
}

// decodeFailure prefers the kind the registry reports and falls back to the
// HTTP status.
func decodeFailure(op string, resp *http.Response) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	msg := body.Message
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	if kind, ok := kindByName[strings.ToLower(body.Kind)]; ok {
		return ports.NewRegistryError(kind, op, msg, nil)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ports.NewRegistryError(ports.RegistryNotFound, op, msg, nil)
	case resp.StatusCode == http.StatusConflict:
		return ports.NewRegistryError(ports.RegistryDuplicate, op, msg, nil)
	case resp.StatusCode == http.StatusLocked:
		return ports.NewRegistryError(ports.RegistryLockedByClaim, op, msg, nil)
	case resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout:
		return ports.NewRegistryError(ports.RegistryOperationTimeout, op, msg, nil)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return ports.NewRegistryError(ports.RegistryOffline, op, msg, nil)
	default:
		return ports.NewRegistryError(ports.RegistryInvalidFormat, op, msg, nil)
	}
}

func classifyTransport(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ports.NewRegistryError(ports.RegistryOperationTimeout, op, "deadline exceeded", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ports.NewRegistryError(ports.RegistryOperationTimeout, op, "request timed out", err)
	}
	return ports.NewRegistryError(ports.RegistryOffline, op, "registry unreachable", err)
}
