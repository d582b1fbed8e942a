// Package client holds the outbound HTTP adapters for the coupon and order
// services plus the error mapping they share.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"printstore/internal/domain"
)

const errorBodyReadLimit int64 = 4096

// ResponseError maps a non-2xx response to a coded error whose message is the
// remote service's own text, so callers can show it to the shopper unchanged.
// 4xx responses become CodeValidation, everything else CodeDependency.
func ResponseError(resp *http.Response, op string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	msg := remoteMessage(raw)
	if msg == "" {
		msg = fmt.Sprintf("%s failed with status %d", op, resp.StatusCode)
	}
	cause := fmt.Errorf("%s: status %d", op, resp.StatusCode)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return domain.WrapError(domain.CodeValidation, cause, msg)
	}
	return domain.WrapError(domain.CodeDependency, cause, msg)
}

// TransportError classifies a failed round trip.
func TransportError(err error, op string) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return domain.WrapError(domain.CodeTimeout, err, op+" timed out")
	}
	return domain.WrapError(domain.CodeDependency, err, op+" unavailable")
}

func remoteMessage(raw []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		var s string
		if json.Unmarshal(body.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
