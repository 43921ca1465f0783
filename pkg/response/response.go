package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data     interface{}            `json:"data,omitempty"`
	Error    *appErrors.Error       `json:"error,omitempty"`
	Warnings []*appErrors.Error     `json:"warnings,omitempty"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional metadata.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// WithWarnings sends a success response that also carries soft failures the
// operator must see, such as a ledger write-back that did not go through.
func WithWarnings(c *gin.Context, status int, data interface{}, warnings ...*appErrors.Error) {
	noStore(c)
	envelope := Envelope{Data: data}
	for _, w := range warnings {
		if w != nil {
			envelope.Warnings = append(envelope.Warnings, w)
		}
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
