package middleware

import (
	"github.com/gin-gonic/gin"

	ierr "github.com/codeldorado/rebill/internal/errors"
)

// ErrorHandler renders the first error a handler attached with c.Error as
// a structured ErrorResponse with the status the error's mark maps to
func ErrorHandler(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}

	err := c.Errors[0].Err
	c.JSON(ierr.HTTPStatusFromErr(err), ierr.NewErrorResponse(err))
}
