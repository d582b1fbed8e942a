package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"printstore/internal/client/orders"
	"printstore/internal/domain"
	"printstore/internal/service/checkout"
)

const (
	shopperField       = "shopper"
	multipartMemory    = 8 << 20
	multipartMediaType = "multipart/form-data"
)

type checkoutJSON struct {
	Shopper domain.Shopper `json:"shopper"`
}

// checkout accepts either a JSON body with the shopper details or a
// multipart form carrying a "shopper" JSON field and one design_<lineId>
// file per customized line.
func (h *handlers) checkout(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.MaxUploadBytes)

	var (
		req checkout.Request
		err error
	)
	if strings.HasPrefix(c.ContentType(), multipartMediaType) {
		req, err = h.readMultipartCheckout(c)
	} else {
		var body checkoutJSON
		if bindErr := c.ShouldBindJSON(&body); bindErr != nil {
			err = domain.WrapError(domain.CodeValidation, bindErr, "invalid checkout payload")
		}
		req.Shopper = body.Shopper
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	conf, err := h.deps.Checkout.Checkout(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, conf)
}

func (h *handlers) readMultipartCheckout(c *gin.Context) (checkout.Request, error) {
	var req checkout.Request
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, domain.Errorf(domain.CodeValidation, "upload exceeds %d bytes", tooLarge.Limit)
		}
		return req, domain.WrapError(domain.CodeValidation, err, "invalid checkout form")
	}
	form := c.Request.MultipartForm

	raw := strings.TrimSpace(c.Request.FormValue(shopperField))
	if raw == "" {
		return req, domain.NewError(domain.CodeValidation, "shopper details required")
	}
	if err := json.Unmarshal([]byte(raw), &req.Shopper); err != nil {
		return req, domain.WrapError(domain.CodeValidation, err, "invalid shopper details")
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		if strings.HasPrefix(field, orders.DesignFieldPrefix) {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	for _, field := range fields {
		headers := form.File[field]
		if len(headers) != 1 {
			return req, domain.Errorf(domain.CodeValidation, "expected one file in %q", field)
		}
		data, err := readPart(headers[0], h.deps.MaxUploadBytes)
		if err != nil {
			return req, err
		}
		req.Designs = append(req.Designs, checkout.Upload{
			LineID:   strings.TrimPrefix(field, orders.DesignFieldPrefix),
			Filename: headers[0].Filename,
			Data:     data,
		})
	}
	return req, nil
}

func readPart(header *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, domain.Errorf(domain.CodeValidation, "%s exceeds %d bytes", header.Filename, limit)
	}
	return data, nil
}
