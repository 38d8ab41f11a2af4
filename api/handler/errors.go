package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sellerwatch/models"
	"github.com/use-agent/sellerwatch/store"
)

// respondError writes err as a coded ErrorResponse.
func respondError(c *gin.Context, err error) {
	var crawlErr *models.CrawlError
	switch {
	case errors.As(err, &crawlErr):
	case errors.Is(err, store.ErrNotFound):
		crawlErr = models.NewCrawlError(models.ErrCodeNotFound, err.Error(), err)
	default:
		crawlErr = models.NewCrawlError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(crawlErr), models.ErrorResponse{Error: crawlErr.ToDetail()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: &models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: msg},
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.CrawlError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRunActive:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeNavigationTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeBrowser, models.ErrCodeNoProxy:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}
