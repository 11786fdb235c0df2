package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/casefile-api/pkg/errors"
)

// idParam parses a positive integer path parameter.
func idParam(c *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid %s %q", name, raw))
	}
	return id, nil
}

// attachmentHeader builds a Content-Disposition value for a download.
func attachmentHeader(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
