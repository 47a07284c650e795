package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"telehealth/internal/middleware"
	"telehealth/internal/providers"
	"telehealth/internal/services"
)

// multipartOverhead is allowed on top of the audio size for form framing.
const multipartOverhead = 1 << 20

// Transcriber is the speech-to-text provider.
type Transcriber interface {
	Transcribe(ctx context.Context, filename, contentType string, audio io.Reader) (*providers.Response, error)
}

type TranscriptionController struct {
	transcriber    Transcriber
	consultations  *services.ConsultationService
	transcripts    *services.TranscriptService
	uploadDir      string
	maxUploadBytes int64
	exposeUpstream bool
}

type TranscriptionOptions struct {
	UploadDir      string
	MaxUploadBytes int64
	ExposeUpstream bool
}

func NewTranscriptionController(
	transcriber Transcriber,
	consultations *services.ConsultationService,
	transcripts *services.TranscriptService,
	opts TranscriptionOptions,
) *TranscriptionController {
	return &TranscriptionController{
		transcriber:    transcriber,
		consultations:  consultations,
		transcripts:    transcripts,
		uploadDir:      opts.UploadDir,
		maxUploadBytes: opts.MaxUploadBytes,
		exposeUpstream: opts.ExposeUpstream,
	}
}

// Transcribe relays an uploaded "audio" file to the transcription provider.
// With a consultationId form field the result is also stored.
// @Router /api/transcription [post]
func (tc *TranscriptionController) Transcribe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, tc.maxUploadBytes+multipartOverhead)

	fh, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}
	if fh.Size > tc.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio file too large"})
		return
	}

	userID, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	var consultationID uint
	if raw := strings.TrimSpace(c.PostForm("consultationId")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid consultationId format."})
			return
		}
		if _, err := tc.consultations.GetForParticipant(ctx, uint(id), userID); err != nil {
			respondError(c, err)
			return
		}
		consultationID = uint(id)
	}

	if err := os.MkdirAll(tc.uploadDir, 0o750); err != nil {
		logrus.WithError(err).WithField("dir", tc.uploadDir).Error("Failed to create upload directory.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store upload"})
		return
	}
	path := filepath.Join(tc.uploadDir, uuid.NewString()+filepath.Ext(fh.Filename))
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).WithField("path", path).Warn("Failed to remove upload.")
		}
	}()
	if err := c.SaveUploadedFile(fh, path); err != nil {
		logrus.WithError(err).Error("Failed to save upload.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store upload"})
		return
	}

	audio, err := os.Open(path)
	if err != nil {
		logrus.WithError(err).Error("Failed to open upload.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store upload"})
		return
	}
	defer audio.Close()

	resp, err := tc.transcriber.Transcribe(ctx, filepath.Base(fh.Filename), fh.Header.Get("Content-Type"), audio)
	if err != nil {
		respondError(c, err, tc.exposeUpstream)
		return
	}

	if consultationID != 0 {
		if _, err := tc.transcripts.Save(ctx, consultationID, userID, resp.Body); err != nil {
			logrus.WithError(err).WithField("consultation_id", consultationID).Error("Failed to store transcript.")
		}
	}
	c.Data(resp.StatusCode, resp.ContentType, resp.Body)
}
