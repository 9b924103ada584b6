package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"shortcut-service/internal/links"
)

// ShortcutRequest is the body of create and update requests.
type ShortcutRequest struct {
	OriginalURL string `json:"original_url"`
}

// ShortcutResponse is the external form of a link record.
type ShortcutResponse struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	OriginalURL string    `json:"original_url"`
	ShortURL    string    `json:"short_url"`
	Visits      int64     `json:"visits"`
	Owner       string    `json:"owner"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RedirectResponse is returned by the JSON resolve endpoint.
type RedirectResponse struct {
	Code        string `json:"code"`
	OriginalURL string `json:"original_url"`
	ShortURL    string `json:"short_url"`
	Visits      int64  `json:"visits"`
}

// ListResponse wraps a page of active shortcuts.
type ListResponse struct {
	Shortcuts []ShortcutResponse `json:"shortcuts"`
	Count     int64              `json:"count"`
}

// Handler serves the shortcut endpoints.
type Handler struct {
	manager  *links.Manager
	resolver *links.Resolver
	baseURL  string
	logger   *slog.Logger
}

// NewHandler builds a Handler. baseURL prefixes codes in short_url fields.
func NewHandler(manager *links.Manager, resolver *links.Resolver, baseURL string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		manager:  manager,
		resolver: resolver,
		baseURL:  baseURL,
		logger:   logger,
	}
}

func (h *Handler) shortURL(code string) string {
	return ShortURL(h.baseURL, code)
}

func (h *Handler) toResponse(link *links.Link) ShortcutResponse {
	return NewShortcutResponse(link, h.baseURL)
}

// ShortURL joins baseURL and code.
func ShortURL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/" + code
}

// NewShortcutResponse renders link for clients.
func NewShortcutResponse(link *links.Link, baseURL string) ShortcutResponse {
	return ShortcutResponse{
		ID:          link.ID,
		Code:        link.Code,
		OriginalURL: link.Target,
		ShortURL:    ShortURL(baseURL, link.Code),
		Visits:      link.Visits,
		Owner:       link.Owner,
		Status:      string(link.Status),
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

// fail maps domain errors to status codes. Anything unexpected is logged and
// answered with an opaque 500.
func (h *Handler) fail(c *gin.Context, err error, action string) {
	var verr *links.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Message: "The given data was invalid.",
			Errors:  map[string][]string{verr.Field: {verr.Message}},
		})
	case errors.Is(err, links.ErrNotFound):
		respondError(c, http.StatusNotFound, "Shortcut not found")
	case errors.Is(err, links.ErrInvalidState):
		respondError(c, http.StatusConflict, "Shortcut is no longer active")
	case errors.Is(err, links.ErrForbidden):
		respondError(c, http.StatusForbidden, "This action is unauthorized.")
	default:
		h.logger.Error("request failed",
			"action", action,
			"request_id", c.GetString(requestIDKey),
			"error", err,
		)
		respondError(c, http.StatusInternalServerError, "Failed to "+action)
	}
}

func bindShortcut(c *gin.Context) (ShortcutRequest, bool) {
	var req ShortcutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return req, false
	}
	return req, true
}

// ListShortcuts returns the active shortcuts, newest first.
func (h *Handler) ListShortcuts(c *gin.Context) {
	limit, errLimit := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, errOffset := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if errLimit != nil || errOffset != nil || limit < 0 || offset < 0 {
		respondError(c, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	page, total, err := h.manager.ListActive(c.Request.Context(), links.Page{Limit: limit, Offset: offset})
	if err != nil {
		h.fail(c, err, "retrieve shortcuts")
		return
	}

	shortcuts := make([]ShortcutResponse, len(page))
	for i, link := range page {
		shortcuts[i] = h.toResponse(link)
	}
	respondOK(c, http.StatusOK, "Shortcuts retrieved successfully", ListResponse{
		Shortcuts: shortcuts,
		Count:     total,
	})
}

// CreateShortcut issues a new short code for the posted URL.
func (h *Handler) CreateShortcut(c *gin.Context) {
	req, ok := bindShortcut(c)
	if !ok {
		return
	}

	link, err := h.manager.Create(c.Request.Context(), callerFrom(c), req.OriginalURL)
	if err != nil {
		h.fail(c, err, "create shortcut")
		return
	}
	respondOK(c, http.StatusCreated, "Shortcut created successfully", h.toResponse(link))
}

// ShowShortcut returns one shortcut owned by the caller.
func (h *Handler) ShowShortcut(c *gin.Context) {
	link, err := h.manager.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "retrieve shortcut")
		return
	}
	respondOK(c, http.StatusOK, "Shortcut retrieved successfully", h.toResponse(link))
}

// UpdateShortcut replaces the target URL. The code stays the same.
func (h *Handler) UpdateShortcut(c *gin.Context) {
	req, ok := bindShortcut(c)
	if !ok {
		return
	}

	link, err := h.manager.Update(c.Request.Context(), callerFrom(c), c.Param("id"), req.OriginalURL)
	if err != nil {
		h.fail(c, err, "update shortcut")
		return
	}
	respondOK(c, http.StatusOK, "Shortcut updated successfully", h.toResponse(link))
}

// RetireShortcut soft-deletes a shortcut.
func (h *Handler) RetireShortcut(c *gin.Context) {
	if _, err := h.manager.Retire(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		h.fail(c, err, "delete shortcut")
		return
	}
	c.Status(http.StatusNoContent)
}

// ResolveHandler resolves a code and reports the target as JSON.
func (h *Handler) ResolveHandler(c *gin.Context) {
	res, err := h.resolver.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, links.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Short URL not found or inactive")
			return
		}
		h.fail(c, err, "retrieve URL")
		return
	}
	respondOK(c, http.StatusOK, "URL found successfully", RedirectResponse{
		Code:        res.Code,
		OriginalURL: res.Target,
		ShortURL:    h.shortURL(res.Code),
		Visits:      res.Visits,
	})
}

// RedirectHandler resolves a code and redirects the browser to its target.
func (h *Handler) RedirectHandler(c *gin.Context) {
	res, err := h.resolver.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, links.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Short URL not found or inactive")
			return
		}
		h.fail(c, err, "retrieve URL")
		return
	}
	c.Redirect(http.StatusFound, res.Target)
}

// HealthCheckHandler provides a simple health check endpoint.
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
