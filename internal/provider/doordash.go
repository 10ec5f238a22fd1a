package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// NameDoorDash identifies the DoorDash Drive courier source.
const NameDoorDash = "doordash"

const (
	doordashProdURL    = "https://openapi.doordash.com/drive/v2"
	doordashSandboxURL = "https://openapi.doordash.com/drive/v2/sandbox"

	tokenTTL = 5 * time.Minute
)

// DoorDash is a DoorDash Drive API client. Every request is signed with a
// short-lived JWT derived from the restaurant's signing secret.
type DoorDash struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
}

// DoorDashOption customizes the client.
type DoorDashOption func(*DoorDash)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) DoorDashOption {
	return func(d *DoorDash) {
		if c != nil {
			d.client = c
		}
	}
}

// WithBaseURL overrides both sandbox and production endpoints; used by tests.
func WithBaseURL(u string) DoorDashOption {
	return func(d *DoorDash) { d.baseURL = strings.TrimRight(u, "/") }
}

// NewDoorDash creates a DoorDash Drive client.
func NewDoorDash(opts ...DoorDashOption) *DoorDash {
	d := &DoorDash{
		client: &http.Client{Timeout: 15 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the provider name.
func (d *DoorDash) Name() string { return NameDoorDash }

// token builds the DD-JWT-V1 bearer token for one request.
func (d *DoorDash) token(creds Credentials) (string, error) {
	secret, err := base64.RawURLEncoding.DecodeString(creds.SigningSecret)
	if err != nil {
		return "", fmt.Errorf("decode signing secret: %w", err)
	}

	now := d.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"aud": "doordash",
		"iss": creds.DeveloperID,
		"kid": creds.KeyID,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	})
	t.Header["dd-ver"] = "DD-JWT-V1"
	t.Header["kid"] = creds.KeyID

	signed, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (d *DoorDash) endpoint(creds Credentials) string {
	if d.baseURL != "" {
		return d.baseURL
	}
	if creds.Sandbox {
		return doordashSandboxURL
	}
	return doordashProdURL
}

type doordashDelivery struct {
	ExternalDeliveryID string `json:"external_delivery_id"`
	DeliveryStatus     string `json:"delivery_status"`
	UpdatedAt          string `json:"updated_at"`
}

type doordashCreateRequest struct {
	ExternalDeliveryID string  `json:"external_delivery_id"`
	PickupLatitude     float64 `json:"pickup_latitude"`
	PickupLongitude    float64 `json:"pickup_longitude"`
	DropoffLatitude    float64 `json:"dropoff_latitude"`
	DropoffLongitude   float64 `json:"dropoff_longitude"`
	OrderValue         int64   `json:"order_value"`
	Currency           string  `json:"currency"`
	MerchantID         string  `json:"pickup_external_store_id,omitempty"`
}

// RequestDelivery asks DoorDash to dispatch a courier for the delivery.
func (d *DoorDash) RequestDelivery(ctx context.Context, creds Credentials, req DeliveryRequest) (Handle, error) {
	const op = "doordash.RequestDelivery"

	body := doordashCreateRequest{
		ExternalDeliveryID: req.DeliveryID.String(),
		PickupLatitude:     req.Pickup.Lat,
		PickupLongitude:    req.Pickup.Lng,
		DropoffLatitude:    req.Dropoff.Lat,
		DropoffLongitude:   req.Dropoff.Lng,
		OrderValue:         req.OrderValue.Shift(2).IntPart(),
		Currency:           req.Currency,
		MerchantID:         creds.MerchantID,
	}

	var out doordashDelivery
	if err := d.do(ctx, op, creds, http.MethodPost, d.endpoint(creds)+"/deliveries", body, &out); err != nil {
		return Handle{}, err
	}
	if out.ExternalDeliveryID == "" {
		return Handle{}, NewError(KindRejected, op, fmt.Errorf("response without delivery id"))
	}
	return Handle{ExternalID: out.ExternalDeliveryID, Status: out.DeliveryStatus}, nil
}

// PollStatus fetches the current courier status of a dispatched delivery.
func (d *DoorDash) PollStatus(ctx context.Context, creds Credentials, externalID string) (Status, error) {
	const op = "doordash.PollStatus"

	var out doordashDelivery
	url := d.endpoint(creds) + "/deliveries/" + externalID
	if err := d.do(ctx, op, creds, http.MethodGet, url, nil, &out); err != nil {
		return Status{}, err
	}

	updatedAt := d.now()
	if out.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, out.UpdatedAt); err == nil {
			updatedAt = ts.UTC()
		}
	}
	return Status{
		ExternalID: out.ExternalDeliveryID,
		State:      strings.ToLower(out.DeliveryStatus),
		UpdatedAt:  updatedAt,
	}, nil
}

func (d *DoorDash) do(ctx context.Context, op string, creds Credentials, method, url string, in, out any) error {
	token, err := d.token(creds)
	if err != nil {
		return NewError(KindAuth, op, err)
	}

	var reader io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return NewError(KindRejected, op, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return NewError(KindRejected, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		// network faults and timeouts are retryable
		return NewError(KindTransient, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return NewError(classifyStatus(resp.StatusCode), op,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return NewError(KindTransient, op, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}
