package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"printstore/internal/domain"
	"printstore/internal/logging"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeError renders err using its domain code. Uncoded errors are logged and
// hidden behind a generic 500.
func writeError(c *gin.Context, logger *logging.Logger, err error) {
	if typed := domain.AsError(err); typed != nil {
		meta := domain.MetadataFor(typed.Code())
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(c.Request.Context(), "request failed", err)
		}
		c.JSON(meta.HTTPStatus, errorBody{Code: string(typed.Code()), Message: typed.Message(), Retryable: meta.Retryable})
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody{Code: string(domain.CodeNotFound), Message: "not found"})
		return
	}
	logger.Error(c.Request.Context(), "request failed", err)
	c.JSON(http.StatusInternalServerError, errorBody{Code: string(domain.CodeInternal), Message: "internal error"})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody{Code: string(domain.CodeValidation), Message: message})
}
