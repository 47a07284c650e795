package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"telehealth/internal/apperr"
	"telehealth/internal/middleware"
)

// respondError writes the JSON error body for err. Provider bodies are only
// included when exposeUpstream is set.
func respondError(c *gin.Context, err error, exposeUpstream ...bool) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"error": errorMessage(err)}

	var e *apperr.Error
	if errors.As(err, &e) && e.Kind == apperr.KindUpstream && e.UpstreamStatus != 0 &&
		len(exposeUpstream) > 0 && exposeUpstream[0] {
		body["upstream"] = upstreamDetail(e)
	}

	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithFields(logrus.Fields{
			"status":     status,
			"path":       c.FullPath(),
			"request_id": middleware.GetRequestID(c),
		}).Error("Request failed.")
	}
	c.AbortWithStatusJSON(status, body)
}

func errorMessage(err error) string {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	switch e.Kind {
	case apperr.KindPersistence:
		if e.Err != nil {
			return fmt.Sprintf("database error: %v", e.Err)
		}
		return "database error"
	case apperr.KindInternal:
		return "internal server error"
	case apperr.KindInvalidTransition:
		return e.Error()
	}
	return e.Message
}

func upstreamDetail(e *apperr.Error) gin.H {
	detail := gin.H{"status": e.UpstreamStatus}
	if json.Valid(e.UpstreamBody) {
		detail["body"] = json.RawMessage(e.UpstreamBody)
	} else {
		detail["body"] = string(e.UpstreamBody)
	}
	return detail
}

// parseID reads a positive integer path parameter.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " format."})
		return 0, false
	}
	return uint(id), true
}
