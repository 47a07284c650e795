package routes

import (
	"io"
	"net/http"

	"github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"

	"telehealth/internal/controllers"
	"telehealth/internal/middleware"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	JWT         *middleware.JWT
	AuthLimiter *middleware.RateLimiter
	AccessLog   io.Writer

	// TrustedProxies are the only peers whose X-Forwarded-For is honored.
	// Nil trusts none, so ClientIP is the socket address.
	TrustedProxies []string

	Auth          *controllers.AuthController
	Consultations *controllers.ConsultationController
	Chats         *controllers.ChatController
	Daily         *controllers.DailyController
	Transcription *controllers.TranscriptionController
	ChatSocket    *controllers.ChatSocketController
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		logrus.WithError(err).Error("invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), middleware.RequestID())
	if d.AccessLog != nil {
		r.Use(logger.SetLogger(
			logger.WithWriter(d.AccessLog),
			logger.WithSkipPath([]string{"/health"}),
			logger.WithLogger(func(c *gin.Context, l zerolog.Logger) zerolog.Logger {
				return l.With().Str("request_id", middleware.GetRequestID(c)).Logger()
			}),
		))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := r.Group("/api")
	AuthRoutes(api, d)
	ConsultationRoutes(api, d)
	ChatRoutes(api, d)
	ProviderRoutes(api, d)
	WebSocketRoutes(r, d)

	return r
}
