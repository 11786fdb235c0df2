package response

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casefile-api/internal/models"
	appErrors "github.com/noah-isme/casefile-api/pkg/errors"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope represents the common response contract.
type Envelope struct {
	Status     string             `json:"status"`
	Message    string             `json:"message,omitempty"`
	Code       string             `json:"code,omitempty"`
	Data       interface{}        `json:"data,omitempty"`
	ID         interface{}        `json:"id,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination) {
	noStore(c)
	c.JSON(status, Envelope{Status: StatusSuccess, Data: data, Pagination: pagination})
}

// Stored reports the identifier produced by a store/update operation.
func Stored(c *gin.Context, status int, id interface{}, message string, data interface{}) {
	noStore(c)
	c.JSON(status, Envelope{Status: StatusSuccess, Message: message, ID: id, Data: data})
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Status: StatusError, Code: appErr.Code, Message: appErr.Detail()})
}

// Message sends a success envelope carrying only a message.
func Message(c *gin.Context, status int, message string) {
	noStore(c)
	c.JSON(status, Envelope{Status: StatusSuccess, Message: message})
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
