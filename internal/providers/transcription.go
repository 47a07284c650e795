package providers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"telehealth/internal/apperr"
	"telehealth/internal/config"
)

const transcriptionProvider = "transcription"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// TranscriptionClient sends audio to an OpenAI-compatible transcription API.
type TranscriptionClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func NewTranscriptionClient(cfg config.TranscriptionConfig) *TranscriptionClient {
	return &TranscriptionClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Transcribe streams audio as a multipart upload with "file" and "model"
// fields. The body is produced while the request is sent.
func (t *TranscriptionClient) Transcribe(ctx context.Context, filename, contentType string, audio io.Reader) (*Response, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", pr)
	if err != nil {
		return nil, apperr.Upstream(transcriptionProvider, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	go func() {
		pw.CloseWithError(writeAudioForm(mw, t.model, filename, contentType, audio))
	}()
	return do(t.http, req, transcriptionProvider)
}

func writeAudioForm(mw *multipart.Writer, model, filename, contentType string, audio io.Reader) error {
	if err := mw.WriteField("model", model); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}
	return mw.Close()
}
