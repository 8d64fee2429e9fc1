package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"groundchat/internal/model"
	"groundchat/internal/transport/http/middleware"
	"groundchat/internal/transport/http/response"
)

// respondDomainError maps the shared error taxonomy onto HTTP statuses and
// envelope codes. fallback is used for errors outside the taxonomy.
func respondDomainError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, model.ErrPayloadTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, err.Error())
	case errors.Is(err, model.ErrUnsupportedType):
		response.Error(c, http.StatusUnsupportedMediaType, response.CodeUnsupportedType, err.Error())
	case errors.Is(err, model.ErrQuotaExceeded):
		response.Error(c, http.StatusTooManyRequests, response.CodeQuotaExceeded, err.Error())
	case errors.Is(err, model.ErrNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, model.ErrTimeout):
		response.Error(c, http.StatusGatewayTimeout, response.CodeTimeout, err.Error())
	case errors.Is(err, model.ErrServiceUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, err.Error())
	case errors.Is(err, model.ErrGenerationFailed):
		response.Error(c, http.StatusBadGateway, response.CodeGenerationFailed, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}
