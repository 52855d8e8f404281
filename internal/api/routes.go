// Package api exposes the voice pipeline over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/domain/repositories"
	"github.com/moneihq/monei-voice/internal/auth"
	"github.com/moneihq/monei-voice/internal/events"
	"github.com/moneihq/monei-voice/internal/metrics"
	"github.com/moneihq/monei-voice/usecase"
)

// Exchanger runs the pipeline operations behind the API.
type Exchanger interface {
	VoiceExchange(ctx context.Context, blob []byte, filename string, voice string) (*domain.Exchange, error)
	TextExchange(ctx context.Context, text string, voice string) (*domain.Exchange, error)
	Transcribe(ctx context.Context, blob []byte, filename string) (domain.Transcript, error)
}

var _ Exchanger = (*usecase.Pipeline)(nil)

// Server wires the HTTP routes to the pipeline and its collaborators.
type Server struct {
	exchanger    Exchanger
	store        repositories.ArtifactStore
	tts          repositories.TextToSpeech
	hub          *events.Hub
	authn        *auth.Authenticator
	metrics      *metrics.Metrics
	defaultVoice string
	maxUpload    int64
	logger       *zap.Logger
}

// ServerConfig carries the server's collaborators.
type ServerConfig struct {
	Exchanger    Exchanger
	Store        repositories.ArtifactStore
	TTS          repositories.TextToSpeech
	Hub          *events.Hub
	Authn        *auth.Authenticator
	Metrics      *metrics.Metrics
	DefaultVoice string
	MaxUpload    int64
}

// NewServer creates the route handler set.
func NewServer(cfg ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		exchanger:    cfg.Exchanger,
		store:        cfg.Store,
		tts:          cfg.TTS,
		hub:          cfg.Hub,
		authn:        cfg.Authn,
		metrics:      cfg.Metrics,
		defaultVoice: cfg.DefaultVoice,
		maxUpload:    cfg.MaxUpload,
		logger:       logger,
	}
}

// Register attaches every route to the echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.Use(s.observeRequests())

	e.GET("/", s.root)
	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/voices", s.listVoices)
	api.POST("/transcribe", s.transcribe)
	api.POST("/chat", s.voiceChat)
	api.POST("/chat/text", s.textChat)
	api.GET("/audio/:ref", s.getAudio)

	admin := api.Group("", s.authn.Middleware())
	admin.POST("/voices/refresh", s.refreshVoices)
	admin.DELETE("/audio/:ref", s.evictAudio)

	e.GET("/ws/events", s.hub.ServeWS)
}

// observeRequests records the request counter and latency histograms.
func (s *Server) observeRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			route := c.Path()
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			s.metrics.HTTPRequests.WithLabelValues(
				c.Request().Method, route, strconv.Itoa(status)).Inc()
			s.metrics.HTTPRequestDuration.WithLabelValues(route).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "monei-voice",
		"message": "voice chat API; see /api/voices, /api/chat, /api/chat/text",
	})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "monei-voice",
	})
}

func (s *Server) listVoices(c echo.Context) error {
	return c.JSON(http.StatusOK, VoicesResponse{
		Voices:  s.tts.Voices(),
		Default: s.defaultVoice,
	})
}

func (s *Server) transcribe(c echo.Context) error {
	blob, filename, err := s.readUpload(c)
	if err != nil {
		return s.writeError(c, err)
	}

	transcript, err := s.exchanger.Transcribe(c.Request().Context(), blob, filename)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, transcript)
}

func (s *Server) voiceChat(c echo.Context) error {
	blob, filename, err := s.readUpload(c)
	if err != nil {
		return s.writeError(c, err)
	}
	voice := c.QueryParam("voice")
	if voice == "" {
		voice = c.FormValue("voice")
	}

	exchange, err := s.exchanger.VoiceExchange(c.Request().Context(), blob, filename, voice)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, s.exchangeResponse(exchange))
}

func (s *Server) textChat(c echo.Context) error {
	var req TextChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "request body must be JSON with a text field",
		})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "text is required",
		})
	}

	exchange, err := s.exchanger.TextExchange(c.Request().Context(), req.Text, req.Voice)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, s.exchangeResponse(exchange))
}

func (s *Server) getAudio(c echo.Context) error {
	artifact, err := s.store.Retrieve(c.Request().Context(), c.Param("ref"))
	if err != nil {
		return s.writeError(c, err)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, artifact.MIMEType, artifact.Bytes)
}

func (s *Server) refreshVoices(c echo.Context) error {
	if err := s.tts.RefreshVoices(c.Request().Context()); err != nil {
		s.logger.Error("voice catalog refresh failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "refresh_failed",
			Message: "could not refresh the voice catalog",
		})
	}
	return s.listVoices(c)
}

func (s *Server) evictAudio(c echo.Context) error {
	if err := s.store.Evict(c.Request().Context(), c.Param("ref")); err != nil {
		return s.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// readUpload pulls the audio file out of the multipart form. The read is
// capped just above the configured limit so an oversize upload is rejected
// without buffering all of it.
func (s *Server) readUpload(c echo.Context) (blob []byte, filename string, err error) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return nil, "", domain.Ef(domain.KindUnsupportedAudioFormat,
			"multipart form must carry an audio file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", domain.E(domain.KindInternal, "open uploaded file", err)
	}
	defer file.Close()

	blob, err = io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		return nil, "", domain.E(domain.KindInternal, "read uploaded file", err)
	}
	if int64(len(blob)) > s.maxUpload {
		return nil, "", domain.Ef(domain.KindPayloadTooLarge,
			"audio upload exceeds the %d byte limit", s.maxUpload)
	}
	return blob, fileHeader.Filename, nil
}

func (s *Server) exchangeResponse(exchange *domain.Exchange) ExchangeResponse {
	return ExchangeResponse{
		UserText:      exchange.UserText,
		AIText:        exchange.AIText,
		AudioURL:      "/api/audio/" + exchange.AudioRef,
		AudioDuration: exchange.AudioDuration,
	}
}

// writeError maps an error kind to its HTTP status and the uniform payload.
func (s *Server) writeError(c echo.Context, err error) error {
	kind := domain.KindOf(err)
	status := statusOf(kind)
	if status >= 500 {
		s.logger.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("kind", string(kind)), zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{
		Error:   string(kind),
		Message: userMessage(kind),
	})
}

func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.KindUnsupportedAudioFormat:
		return http.StatusUnsupportedMediaType
	case domain.KindVoiceNotFound:
		return http.StatusBadRequest
	case domain.KindArtifactNotFound:
		return http.StatusNotFound
	case domain.KindSynthesisTimeout:
		return http.StatusGatewayTimeout
	case domain.KindSynthesisUnavailable,
		domain.KindResponseSourceUnavailable,
		domain.KindAuthenticationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(kind domain.Kind) string {
	switch kind {
	case domain.KindPayloadTooLarge:
		return "The audio upload is too large."
	case domain.KindUnsupportedAudioFormat:
		return "The audio could not be decoded."
	case domain.KindVoiceNotFound:
		return "The requested voice does not exist."
	case domain.KindArtifactNotFound:
		return "The requested audio is not available."
	case domain.KindSynthesisTimeout:
		return "The speech service did not answer in time."
	case domain.KindSynthesisUnavailable:
		return "The speech service is unavailable."
	case domain.KindResponseSourceUnavailable:
		return "The reply service is unavailable."
	case domain.KindAuthenticationFailed:
		return "The speech service rejected our credentials."
	case domain.KindTranscriptionFailed:
		return "The audio could not be transcribed."
	default:
		return "Something went wrong."
	}
}
