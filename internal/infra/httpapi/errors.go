package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"billing_collections/internal/app"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// abortWithError maps application errors onto HTTP statuses.
func (s *Server) abortWithError(c *gin.Context, err error) {
	var ve *app.ValidationError
	switch {
	case errors.As(err, &ve):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, errorBody{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, app.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, app.ErrConflict), errors.Is(err, app.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, errorBody{Error: err.Error()})
	default:
		s.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: msg})
}

// pathID parses the :id route parameter, aborting with 400 when invalid.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
