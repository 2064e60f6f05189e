package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lgu-admin-api/internal/middleware"
	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func actorFromContext(c *gin.Context) string {
	return claimsFromContext(c).ActorID()
}

// bindOptionalJSON binds a JSON body and treats an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, dest interface{}, what string) error {
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return invalidPayload(err, what)
	}
	return nil
}

func invalidPayload(err error, what string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+what)
}
