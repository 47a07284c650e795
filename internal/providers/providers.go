// Package providers proxies video-call and transcription requests to the
// third-party APIs.
package providers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"telehealth/internal/apperr"
)

// maxResponseBytes caps how much of a provider body is buffered.
const maxResponseBytes = 4 << 20

// Response is a provider answer relayed verbatim to the caller.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func do(client *http.Client, req *http.Request, provider string) (*Response, error) {
	log := logrus.WithFields(logrus.Fields{"provider": provider, "path": req.URL.Path})

	resp, err := client.Do(req)
	if err != nil {
		log.WithError(err).Error("Provider request failed.")
		return nil, apperr.Upstream(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		log.WithError(err).Error("Failed to read provider response.")
		return nil, apperr.Upstream(provider, err)
	}
	oversized := len(body) > maxResponseBytes
	if oversized {
		body = body[:maxResponseBytes]
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.WithField("status", resp.StatusCode).Warn("Provider returned an error response.")
		return nil, apperr.UpstreamResponse(provider, resp.StatusCode, body)
	}
	if oversized {
		log.WithField("limit", maxResponseBytes).Error("Provider response too large.")
		return nil, apperr.Upstream(provider, fmt.Errorf("response exceeds %d bytes", maxResponseBytes))
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json"
	}
	return &Response{StatusCode: resp.StatusCode, ContentType: ct, Body: body}, nil
}
