package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/pipeflow/errors"
)

// envelope wraps every successful API body.
type envelope struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta describes a listed collection.
type Meta struct {
	Total  int    `json:"total"`
	Filter string `json:"filter,omitempty"`
}

// RespondWithError writes err as an error body. Anything that is not an
// *apperrors.AppError is reported as an internal error.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	c.JSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondOK sends data with status 200.
func RespondOK(c *gin.Context, data any) { c.JSON(http.StatusOK, envelope{Data: data}) }

// RespondOKWithMeta sends a listed collection with status 200.
func RespondOKWithMeta(c *gin.Context, data any, meta *Meta) {
	c.JSON(http.StatusOK, envelope{Data: data, Meta: meta})
}

// RespondAccepted sends data with status 202, used once work was queued.
func RespondAccepted(c *gin.Context, data any) { c.JSON(http.StatusAccepted, envelope{Data: data}) }
