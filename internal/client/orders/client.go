package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"printstore/internal/client"
	"printstore/internal/domain"
)

const ordersPath = "/orders"

// DesignFieldPrefix prefixes the multipart field of each design attachment;
// the line id follows it.
const DesignFieldPrefix = "design_"

// Client submits orders to the order-placement API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a client. It sets no client-side timeout; callers bound each
// submission through the context.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("orders api url is required")
	}
	c := &Client{baseURL: baseURL, httpClient: &http.Client{}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Submit sends the order as multipart/form-data and returns the created
// order's id.
func (c *Client) Submit(ctx context.Context, order domain.OrderRequest) (*domain.OrderConfirmation, error) {
	body, contentType, err := Encode(order)
	if err != nil {
		return nil, domain.WrapError(domain.CodeInternal, err, "encode order")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ordersPath, body)
	if err != nil {
		return nil, domain.WrapError(domain.CodeInternal, err, "build order request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, client.TransportError(err, "order placement")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, client.ResponseError(resp, "order placement")
	}

	var out struct {
		OrderID string          `json:"orderId"`
		ID      json.RawMessage `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.WrapError(domain.CodeDependency, err, "order service returned an unreadable response")
	}
	id := out.OrderID
	if id == "" {
		id = rawID(out.ID)
	}
	if id == "" {
		return nil, domain.NewError(domain.CodeDependency, "order service did not return an order id")
	}
	return &domain.OrderConfirmation{OrderID: id}, nil
}

// rawID accepts either a JSON string or number.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// Encode renders the multipart body. Text fields come first, then one file
// part per design named DesignFieldPrefix+lineID.
func Encode(order domain.OrderRequest) (*bytes.Buffer, string, error) {
	products, err := json.Marshal(order.Products)
	if err != nil {
		return nil, "", err
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	fields := []struct{ name, value string }{
		{"products", string(products)},
		{"total_price", strconv.FormatFloat(order.TotalPrice, 'f', 2, 64)},
		{"customer_name", order.Shopper.Name},
		{"customer_email", order.Shopper.Email},
		{"customer_phone", order.Shopper.Phone},
		{"shipping_address", order.Shopper.Address},
	}
	if order.DiscountCode != "" {
		fields = append(fields, struct{ name, value string }{"discount_code", order.DiscountCode})
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	for _, d := range order.Designs {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(DesignFieldPrefix+d.LineID), escapeQuotes(d.Filename)))
		if d.ContentType != "" {
			h.Set("Content-Type", d.ContentType)
		} else {
			h.Set("Content-Type", "application/octet-stream")
		}
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(d.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
