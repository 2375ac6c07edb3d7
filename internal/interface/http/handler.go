package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
	"github.com/yanqian/stream-guard-bot/internal/infra/backup"
	"github.com/yanqian/stream-guard-bot/internal/infra/faqrepo"
	"github.com/yanqian/stream-guard-bot/internal/interface/chat"
	apperrors "github.com/yanqian/stream-guard-bot/pkg/errors"
)

// SnapshotExporter uploads and downloads channel snapshots; *backup.Exporter
// satisfies it.
type SnapshotExporter interface {
	Export(ctx context.Context, channel string, snapshot guard.Snapshot) (backup.StoredObject, error)
	Restore(ctx context.Context, key string) (guard.Snapshot, error)
}

// Handler wires the admin HTTP API to the channel registry.
type Handler struct {
	registry *chat.Registry
	exporter SnapshotExporter
	logger   *slog.Logger
}

// NewHandler constructs the admin handler. exporter may be nil when backups
// are not configured.
func NewHandler(registry *chat.Registry, exporter SnapshotExporter, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		exporter: exporter,
		logger:   logger.With("component", "http.handler"),
	}
}

type channelResponse struct {
	Channel  string         `json:"channel"`
	Settings guard.Settings `json:"settings"`
	Records  int            `json:"records"`
}

type addFAQRequest struct {
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

type updateFAQRequest struct {
	Answer string `json:"answer" binding:"required"`
}

type settingsRequest struct {
	Mode      *string  `json:"mode"`
	Threshold *float64 `json:"threshold"`
}

type restoreRequest struct {
	Key string `json:"key" binding:"required"`
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

// Healthz reports liveness and the number of guarded channels.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "channels": len(h.registry.Channels())})
}

// ListChannels returns the guarded channels.
func (h *Handler) ListChannels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"channels": h.registry.Channels()})
}

// JoinChannel starts guarding a channel.
func (h *Handler) JoinChannel(c *gin.Context) {
	bot, created, err := h.registry.Join(c.Request.Context(), c.Param("channel"))
	if err != nil {
		abortWithError(c, domainError(err, "join_failed"))
		return
	}
	h.audit(c, "channel joined", bot.Channel())
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, channelResponse{Channel: bot.Channel(), Settings: bot.Settings(), Records: len(bot.ListFAQ())})
}

// PartChannel stops guarding a channel.
func (h *Handler) PartChannel(c *gin.Context) {
	channel := guard.NormalizeChannel(c.Param("channel"))
	if !h.registry.Part(channel) {
		_, err := h.registry.Lookup(channel)
		abortWithError(c, domainError(err, "part_failed"))
		return
	}
	h.audit(c, "channel parted", channel)
	c.Status(http.StatusNoContent)
}

// ListFAQ returns the channel's FAQ entries in order.
func (h *Handler) ListFAQ(c *gin.Context) {
	bot, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": bot.Channel(), "entries": bot.ListFAQ()})
}

// AddFAQ appends an entry.
func (h *Handler) AddFAQ(c *gin.Context) {
	bot, ok := h.lookup(c)
	if !ok {
		return
	}
	var req addFAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	entry, err := bot.AddQA(c.Request.Context(), req.Question, req.Answer)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	h.audit(c, "faq entry added", bot.Channel(), "position", entry.Position)
	c.JSON(http.StatusCreated, entry)
}

// UpdateFAQ replaces the answer of an entry.
func (h *Handler) UpdateFAQ(c *gin.Context) {
	bot, ok := h.lookup(c)
	if !ok {
		return
	}
	position, ok := positionParam(c)
	if !ok {
		return
	}
	var req updateFAQRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	entry, err := bot.UpdateQA(c.Request.Context(), position, req.Answer)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	h.audit(c, "faq entry updated", bot.Channel(), "position", entry.Position)
	c.JSON(http.StatusOK, entry)
}

// RemoveFAQ deletes an entry and returns it.
func (h *Handler) RemoveFAQ(c *gin.Context) {
	bot, ok := h.lookup(c)
	if !ok {
		return
	}
	position, ok := positionParam(c)
	if !ok {
		return
	}
	entry, err := bot.RemoveQA(c.Request.Context(), position)
	if err != nil {
		abortWithError(c, domainError(err, "faq_failed"))
		return
	}
	h.audit(c, "faq entry removed", bot.Channel(), "position", entry.Position)
	c.JSON(http.StatusOK, entry)
}

// GetSettings returns the channel's mode and threshold.
func (h *Handler) GetSettings(c *gin.Context) {
	bot, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, bot.Settings())
}

// UpdateSettings changes mode and/or threshold. Fields left out are kept.
func (h *Handler) UpdateSettings(c *gin.Context) {
	bot, ok := h.lookup(c)
	if !ok {
		return
	}
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if req.Mode == nil && req.Threshold == nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "mode or threshold is required", nil))
		return
	}
	update := guard.SettingsUpdate{Threshold: req.Threshold}
	if req.Mode != nil {
		mode := guard.Mode(*req.Mode)
		update.Mode = &mode
	}
	settings, err := bot.UpdateSettings(c.Request.Context(), update)
	if err != nil {
		abortWithError(c, domainError(err, "settings_failed"))
		return
	}
	h.audit(c, "settings updated", bot.Channel(), "mode", settings.Mode, "threshold", settings.Threshold)
	c.JSON(http.StatusOK, settings)
}

// Ask runs the response procedure and returns the full reply, including
// the outcome when no text would be posted to chat.
func (h *Handler) Ask(c *gin.Context) {
	bot, ok := h.lookup(c)
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	reply, err := bot.Ask(c.Request.Context(), req.Question)
	if err != nil {
		abortWithError(c, domainError(err, "ask_failed"))
		return
	}
	c.JSON(http.StatusOK, reply)
}

// Backup uploads the channel's current snapshot to object storage.
func (h *Handler) Backup(c *gin.Context) {
	if h.exporter == nil {
		abortWithError(c, NewHTTPError(http.StatusServiceUnavailable, "backup_disabled", "backup storage is not configured", nil))
		return
	}
	bot, ok := h.lookup(c)
	if !ok {
		return
	}
	obj, err := h.exporter.Export(c.Request.Context(), bot.Channel(), bot.Snapshot())
	if err != nil {
		abortWithError(c, domainError(err, "backup_failed"))
		return
	}
	h.audit(c, "backup created", bot.Channel(), "key", obj.Key)
	c.JSON(http.StatusCreated, obj)
}

// ImportFAQ replaces the channel's FAQ with the JSON-lines snapshot in the
// request body. The live bot re-embeds records as needed and persists them.
func (h *Handler) ImportFAQ(c *gin.Context) {
	bot, ok := h.lookup(c)
	if !ok {
		return
	}
	snapshot, err := faqrepo.DecodeSnapshot(c.Request.Body)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	h.importSnapshot(c, bot, snapshot, "body")
}

// Restore replaces the channel's FAQ with a previously uploaded backup.
func (h *Handler) Restore(c *gin.Context) {
	if h.exporter == nil {
		abortWithError(c, NewHTTPError(http.StatusServiceUnavailable, "backup_disabled", "backup storage is not configured", nil))
		return
	}
	bot, ok := h.lookup(c)
	if !ok {
		return
	}
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	snapshot, err := h.exporter.Restore(c.Request.Context(), req.Key)
	if err != nil {
		abortWithError(c, domainError(err, "restore_failed"))
		return
	}
	h.importSnapshot(c, bot, snapshot, req.Key)
}

func (h *Handler) importSnapshot(c *gin.Context, bot *guard.Bot, snapshot guard.Snapshot, source string) {
	if err := bot.Import(c.Request.Context(), snapshot); err != nil {
		abortWithError(c, domainError(err, "import_failed"))
		return
	}
	entries := bot.ListFAQ()
	h.audit(c, "faq imported", bot.Channel(), "source", source, "records", len(entries))
	c.JSON(http.StatusOK, gin.H{"channel": bot.Channel(), "entries": entries})
}

func (h *Handler) lookup(c *gin.Context) (*guard.Bot, bool) {
	bot, err := h.registry.Lookup(c.Param("channel"))
	if err != nil {
		abortWithError(c, domainError(err, "channel_not_found"))
		return nil, false
	}
	return bot, true
}

func (h *Handler) audit(c *gin.Context, msg, channel string, args ...any) {
	subject := ""
	if claims, ok := getClaims(c); ok {
		subject = claims.Subject
	}
	h.logger.Info(msg, append([]any{"channel", channel, "subject", subject}, args...)...)
}

func positionParam(c *gin.Context) (int, bool) {
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "position must be an integer", err))
		return 0, false
	}
	return position, true
}

// domainError maps application error codes onto HTTP statuses. Unknown
// failures keep fallbackCode and are the only retryable ones: a provider
// gets one attempt per request.
func domainError(err error, fallbackCode string) *HTTPError {
	code := apperrors.CodeOf(err)
	switch code {
	case guard.CodeInvalidInput:
		return NewHTTPError(http.StatusBadRequest, code, errMessage(err), err)
	case guard.CodeIndexOutOfRange, chat.CodeChannelNotFound:
		return NewHTTPError(http.StatusNotFound, code, errMessage(err), err)
	case guard.CodeEmbedding, guard.CodeCompletion, backup.CodeBackup:
		return NewHTTPError(http.StatusBadGateway, code, errMessage(err), err)
	default:
		return newRetryableError(http.StatusInternalServerError, fallbackCode, errMessage(err), err)
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
