package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shortlink/services/url-service/models"
	"shortlink/services/url-service/service"
)

type Shortener interface {
	Shorten(ctx context.Context, req service.ShortenRequest) ([]service.URLView, error)
	List(ctx context.Context) ([]service.URLView, error)
	Stats(ctx context.Context, code string) (*service.StatsView, error)
	Redirect(ctx context.Context, code string, visitor models.Visitor) (string, error)
	Delete(ctx context.Context, code string) error
	Health(ctx context.Context) (service.Health, error)
}

type Handler struct {
	svc     Shortener
	timeout time.Duration
	logger  *slog.Logger
}

func New(svc Shortener, timeout time.Duration, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{svc: svc, timeout: timeout, logger: logger}
}

type ShortenRequest struct {
	URLs      []string `json:"urls"`
	Validity  *int     `json:"validity"`
	Shortcode string   `json:"shortcode"`
}

type urlsData struct {
	URLs []service.URLView `json:"urls"`
}

func (h *Handler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *Handler) Shorten(c *gin.Context) {
	var req ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("invalid shorten body", "error", err)
		Abort(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	created, err := h.svc.Shorten(ctx, service.ShortenRequest{
		URLs:      req.URLs,
		Validity:  req.Validity,
		Shortcode: req.Shortcode,
	})
	if err != nil {
		if len(created) > 0 {
			failWithData(c, err, urlsData{URLs: created})
			return
		}
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, fmt.Sprintf("%d URL(s) created successfully", len(created)), urlsData{URLs: created})
}

func (h *Handler) List(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	views, err := h.svc.List(ctx)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, fmt.Sprintf("Retrieved %d URL(s)", len(views)), urlsData{URLs: views})
}

func (h *Handler) Stats(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	stats, err := h.svc.Stats(ctx, c.Param("shortcode"))
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "URL statistics retrieved", stats)
}

func (h *Handler) Redirect(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	target, err := h.svc.Redirect(ctx, c.Param("shortcode"), visitor(c))
	if err != nil {
		fail(c, err)
		return
	}

	c.Redirect(http.StatusFound, target)
}

func (h *Handler) Delete(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	if err := h.svc.Delete(ctx, c.Param("shortcode")); err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "URL deleted successfully", nil)
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	health, err := h.svc.Health(ctx)
	if err != nil {
		fail(c, err)
		return
	}

	respond(c, http.StatusOK, "Service is healthy", health)
}

func (h *Handler) NotFound(c *gin.Context) {
	Abort(c, http.StatusNotFound, "Endpoint not found")
}

func visitor(c *gin.Context) models.Visitor {
	referrer := c.GetHeader("Referer")
	if referrer == "" {
		referrer = c.GetHeader("Referrer")
	}
	return models.Visitor{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  referrer,
	}
}
