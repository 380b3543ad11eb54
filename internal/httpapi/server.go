package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"council-bot/internal/modules/giveaway"
	"council-bot/internal/modules/moderation"
	"council-bot/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Store is the part of the database the API reads directly.
type Store interface {
	Ping(ctx context.Context) error
	ListEffectLogs(ctx context.Context, limit int) ([]storage.EffectLog, error)
}

type Giveaways interface {
	List(ctx context.Context, offset int) (giveaway.Page, error)
	Get(ctx context.Context, id int64) (giveaway.Entry, error)
}

type Cases interface {
	Snapshot(ctx context.Context, caseID int64) (moderation.Snapshot, error)
}

const (
	defaultEffectLimit = 50
	maxEffectLimit     = 500
)

type Handler struct {
	db        Store
	giveaways Giveaways
	cases     Cases
	logger    *zap.Logger
}

func NewHandler(db Store, giveaways Giveaways, cases Cases, logger *zap.Logger) *Handler {
	return &Handler{db: db, giveaways: giveaways, cases: cases, logger: logger}
}

// Router builds the read-only status API.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())
	h.RegisterRoutes(router.Group(""))
	return router
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.health)

	giveaways := router.Group("/giveaways")
	{
		giveaways.GET("", h.listGiveaways)
		giveaways.GET("/:id", h.getGiveaway)
	}

	router.GET("/cases/:id", h.getCase)
	router.GET("/effects", h.listEffects)
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		h.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(started)))
	}
}

func (h *Handler) health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listGiveaways(c *gin.Context) {
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
			return
		}
		offset = parsed
	}

	page, err := h.giveaways.List(c.Request.Context(), offset)
	if err != nil {
		h.fail(c, err)
		return
	}

	entries := make([]giveawayResponse, 0, len(page.Entries))
	for _, entry := range page.Entries {
		entries = append(entries, newGiveawayResponse(entry))
	}
	c.JSON(http.StatusOK, gin.H{
		"giveaways": entries,
		"offset":    page.Offset,
		"total":     page.Total,
		"has_prev":  page.HasPrev,
		"has_next":  page.HasNext,
	})
}

func (h *Handler) getGiveaway(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	entry, err := h.giveaways.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newGiveawayResponse(entry))
}

func (h *Handler) getCase(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	snapshot, err := h.cases.Snapshot(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newCaseResponse(snapshot))
}

// listEffects returns the newest effect outcomes first.
func (h *Handler) listEffects(c *gin.Context) {
	limit := defaultEffectLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxEffectLimit)
	}

	logs, err := h.db.ListEffectLogs(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]effectResponse, 0, len(logs))
	for _, entry := range logs {
		out = append(out, newEffectResponse(entry))
	}
	c.JSON(http.StatusOK, gin.H{"effects": out})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, giveaway.ErrNotFound), errors.Is(err, moderation.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("http handler failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}
