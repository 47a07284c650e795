package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"telehealth/internal/providers"
)

const maxTokenRequestBytes = 64 << 10

// RoomProvisioner is the video-call provider.
type RoomProvisioner interface {
	CreateRoom(ctx context.Context) (*providers.Response, error)
	MeetingToken(ctx context.Context, payload []byte) (*providers.Response, error)
}

type DailyController struct {
	daily          RoomProvisioner
	exposeUpstream bool
}

func NewDailyController(daily RoomProvisioner, exposeUpstream bool) *DailyController {
	return &DailyController{daily: daily, exposeUpstream: exposeUpstream}
}

// @Router /api/daily/create-room [post]
func (dc *DailyController) CreateRoom(c *gin.Context) {
	resp, err := dc.daily.CreateRoom(c.Request.Context())
	if err != nil {
		respondError(c, err, dc.exposeUpstream)
		return
	}
	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
}

// GetToken forwards the request body to the meeting-token endpoint.
// @Router /api/daily/get-token [post]
func (dc *DailyController) GetToken(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxTokenRequestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}
	resp, err := dc.daily.MeetingToken(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err, dc.exposeUpstream)
		return
	}
	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
}
