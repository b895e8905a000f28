// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"travelfinder/internal/ai"
	"travelfinder/internal/maps"
	"travelfinder/internal/modules/places"
	"travelfinder/internal/modules/prompt"
	"travelfinder/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, prompt.ErrTemplateNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ai.ErrUpstreamStatus), errors.Is(err, places.ErrProviderFailed), errors.Is(err, maps.ErrArcGIS):
		log.Printf("http: upstream failure: %v", err)
		writeError(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "upstream timeout")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response.
		c.Status(499)
	default:
		log.Printf("http: internal error: %v", err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
