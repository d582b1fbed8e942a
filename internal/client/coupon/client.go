package coupon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"printstore/internal/client"
	"printstore/internal/domain"
)

const validatePath = "/coupons/validate"

// Client calls the coupon service's validation endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	validate   *validator.Validate
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("coupon api url is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type validateRequest struct {
	Code string `json:"code"`
}

type validateResponse struct {
	Code               string     `json:"code"`
	Valid              *bool      `json:"valid" validate:"required"`
	DiscountPercentage float64    `json:"discountPercentage" validate:"gte=0,lte=100"`
	ValidFrom          *time.Time `json:"validFrom"`
	ValidUntil         *time.Time `json:"validUntil"`
}

// Validate asks the coupon service whether code is usable. A well-formed
// "not valid" answer is returned as a result, not an error.
func (c *Client) Validate(ctx context.Context, code string) (*domain.CouponValidation, error) {
	payload, err := json.Marshal(validateRequest{Code: code})
	if err != nil {
		return nil, domain.WrapError(domain.CodeInternal, err, "encode coupon request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+validatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.WrapError(domain.CodeInternal, err, "build coupon request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, client.TransportError(err, "coupon validation")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, client.ResponseError(resp, "coupon validation")
	}

	var body validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.WrapError(domain.CodeDependency, err, "coupon service returned an unreadable response")
	}
	if err := c.validate.Struct(body); err != nil {
		return nil, domain.WrapError(domain.CodeDependency, err, "coupon service returned an invalid response")
	}

	result := &domain.CouponValidation{
		Code:       code,
		Valid:      *body.Valid,
		ValidFrom:  body.ValidFrom,
		ValidUntil: body.ValidUntil,
	}
	if result.Valid {
		result.DiscountPercentage = body.DiscountPercentage
	}
	return result, nil
}
