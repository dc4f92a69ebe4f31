package handlers

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/gorilla/websocket"

	"luckydraw/internal/metrics"
	"luckydraw/internal/models"
	"luckydraw/internal/notify"
	"luckydraw/internal/services"
)

// maxUploadBytes caps participant uploads.
const maxUploadBytes = 4 << 20

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	service  *services.LotteryService
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.LotteryService, hub *notify.Hub) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterPublicRoutes registers the routes that need no tenant.
func (h *HTTPHandler) RegisterPublicRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.service.ActiveSessions()})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// RegisterTenantRoutes registers the session-scoped API. The group must use TenantMiddleware.
func (h *HTTPHandler) RegisterTenantRoutes(rg *gin.RouterGroup) {
	api := rg.Group("/api")

	api.GET("/state", h.GetState)

	api.GET("/categories", h.ListCategories)
	api.POST("/categories", h.CreateCategory)
	api.PATCH("/categories/:id", h.UpdateCategory)
	api.DELETE("/categories/:id", h.DeleteCategory)
	api.POST("/categories/:id/select", h.SelectCategory)
	api.GET("/categories/:id/stats", h.GetCategoryStats)
	api.POST("/categories/:id/reset", h.ResetCategoryWinners)

	api.GET("/categories/:id/items", h.ListItems)
	api.POST("/categories/:id/items", h.AddItem)
	api.POST("/categories/:id/items/bulk", h.AddBulkItems)
	api.POST("/categories/:id/items/upload", h.UploadItemsCSV)
	api.PATCH("/categories/:id/items/:itemId", h.UpdateItem)
	api.DELETE("/categories/:id/items/:itemId", h.DeleteItem)

	api.POST("/draw", h.StartDraw)
	api.GET("/draw", h.GetDrawStatus)

	api.GET("/history", h.GetHistory)
	api.DELETE("/history", h.ClearHistory)
	api.GET("/history/export", h.ExportHistoryCSV)

	api.GET("/settings", h.GetSettings)
	api.PATCH("/settings", h.UpdateSettings)

	api.GET("/export", h.ExportData)
	api.POST("/import", h.ImportData)
	api.POST("/reset", h.ResetAllData)
	api.DELETE("/session", h.ClearSession)

	api.GET("/events", h.Events)
}

func (h *HTTPHandler) session(c *gin.Context) *services.LotterySession {
	session := h.service.Session(c.Request.Context(), tenantID(c))
	metrics.SetActiveSessions(h.service.ActiveSessions())
	return session
}

// persist saves the caller's session after a mutation. Failures are logged;
// the in-memory state stays authoritative.
func (h *HTTPHandler) persist(c *gin.Context) {
	if err := h.service.Save(c.Request.Context(), tenantID(c)); err != nil {
		logger.Errorf("Failed to persist state for tenant %s: %v", tenantID(c), err)
	}
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

type categoryView struct {
	models.Category
	Stats models.CategoryStats `json:"stats"`
}

func viewOf(cat models.Category) categoryView {
	return categoryView{Category: cat, Stats: cat.Stats()}
}

// GetState returns everything a client needs to render a session.
func (h *HTTPHandler) GetState(c *gin.Context) {
	s := h.session(c)
	cats := s.Store.Categories()
	views := make([]categoryView, len(cats))
	for i, cat := range cats {
		views[i] = viewOf(cat)
	}
	c.JSON(http.StatusOK, gin.H{
		"currentCategoryId": s.Store.CurrentCategoryID(),
		"categories":        views,
		"settings":          s.Store.Settings(),
		"draw":              s.Draws.Status(),
	})
}

// ListCategories returns all categories with their stats.
func (h *HTTPHandler) ListCategories(c *gin.Context) {
	cats := h.session(c).Store.Categories()
	views := make([]categoryView, len(cats))
	for i, cat := range cats {
		views[i] = viewOf(cat)
	}
	c.JSON(http.StatusOK, views)
}

type createCategoryRequest struct {
	Name       string `json:"name"`
	ThemeColor string `json:"themeColor"`
}

// CreateCategory adds a new category.
func (h *HTTPHandler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		errorJSON(c, http.StatusBadRequest, "category name cannot be empty")
		return
	}

	s := h.session(c)
	cat := s.Store.CreateCategory(req.Name, models.ParseThemeColor(req.ThemeColor))
	if s.Store.CurrentCategoryID() == "" {
		s.Store.SetCurrentCategory(cat.ID)
	}
	h.persist(c)
	c.JSON(http.StatusCreated, viewOf(cat))
}

// UpdateCategory renames or recolors a category.
func (h *HTTPHandler) UpdateCategory(c *gin.Context) {
	var req models.CategoryUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		errorJSON(c, http.StatusBadRequest, "category name cannot be empty")
		return
	}

	s := h.session(c)
	s.Store.UpdateCategory(c.Param("id"), req)
	cat, ok := s.Store.Category(c.Param("id"))
	if !ok {
		errorJSON(c, http.StatusNotFound, services.ErrCategoryNotFound.Error())
		return
	}
	h.persist(c)
	c.JSON(http.StatusOK, viewOf(cat))
}

// DeleteCategory removes a category. Deleting a missing category succeeds.
func (h *HTTPHandler) DeleteCategory(c *gin.Context) {
	h.session(c).Store.DeleteCategory(c.Param("id"))
	h.persist(c)
	c.Status(http.StatusNoContent)
}

// SelectCategory makes a category the current one.
func (h *HTTPHandler) SelectCategory(c *gin.Context) {
	s := h.session(c)
	if _, ok := s.Store.Category(c.Param("id")); !ok {
		errorJSON(c, http.StatusNotFound, services.ErrCategoryNotFound.Error())
		return
	}
	s.Store.SetCurrentCategory(c.Param("id"))
	h.persist(c)
	c.JSON(http.StatusOK, gin.H{"currentCategoryId": s.Store.CurrentCategoryID()})
}

// GetCategoryStats returns total, remaining and won counts.
func (h *HTTPHandler) GetCategoryStats(c *gin.Context) {
	s := h.session(c)
	if _, ok := s.Store.Category(c.Param("id")); !ok {
		errorJSON(c, http.StatusNotFound, services.ErrCategoryNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, s.Store.Stats(c.Param("id")))
}

// ResetCategoryWinners makes every item of a category eligible again.
func (h *HTTPHandler) ResetCategoryWinners(c *gin.Context) {
	s := h.session(c)
	s.Store.ResetCategoryWinners(c.Param("id"))
	h.persist(c)
	c.JSON(http.StatusOK, s.Store.Stats(c.Param("id")))
}

// ListItems returns a category's items, optionally filtered by status=available|won.
func (h *HTTPHandler) ListItems(c *gin.Context) {
	s := h.session(c)
	cat, ok := s.Store.Category(c.Param("id"))
	if !ok {
		errorJSON(c, http.StatusNotFound, services.ErrCategoryNotFound.Error())
		return
	}
	switch c.Query("status") {
	case "":
		c.JSON(http.StatusOK, cat.Items)
	case "available":
		c.JSON(http.StatusOK, cat.AvailableItems())
	case "won":
		c.JSON(http.StatusOK, cat.WonItems())
	default:
		errorJSON(c, http.StatusBadRequest, "status must be available or won")
	}
}

type addItemRequest struct {
	Name string `json:"name"`
}

// AddItem adds one participant.
func (h *HTTPHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}

	s := h.session(c)
	if _, ok := s.Store.Category(c.Param("id")); !ok {
		errorJSON(c, http.StatusNotFound, services.ErrCategoryNotFound.Error())
		return
	}
	item, ok := s.Store.AddItem(c.Param("id"), req.Name)
	if !ok {
		errorJSON(c, http.StatusBadRequest, "participant name cannot be empty")
		return
	}
	h.persist(c)
	c.JSON(http.StatusCreated, item)
}

type bulkItemsRequest struct {
	Names []string `json:"names"`
	Text  string   `json:"text"` // one name per line
}

// AddBulkItems adds many participants at once; blank names are skipped.
func (h *HTTPHandler) AddBulkItems(c *gin.Context) {
	var req bulkItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}

	s := h.session(c)
	if _, ok := s.Store.Category(c.Param("id")); !ok {
		errorJSON(c, http.StatusNotFound, services.ErrCategoryNotFound.Error())
		return
	}
	names := append(req.Names, strings.Split(req.Text, "\n")...)
	added := s.Store.AddBulkItems(c.Param("id"), names)
	h.persist(c)
	c.JSON(http.StatusCreated, gin.H{"added": len(added), "items": added})
}

// headerNames are first-row cells treated as a column header in uploads.
var headerNames = map[string]bool{"name": true, "Name": true, "NAME": true, "姓名": true, "名称": true, "名稱": true}

// UploadItemsCSV handles the CSV upload for participants. The first column
// of each row is the participant name.
func (h *HTTPHandler) UploadItemsCSV(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "error retrieving file: "+err.Error())
		return
	}
	defer file.Close()

	s := h.session(c)
	if _, ok := s.Store.Category(c.Param("id")); !ok {
		errorJSON(c, http.StatusNotFound, services.ErrCategoryNotFound.Error())
		return
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var names []string
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "error reading CSV: "+err.Error())
			return
		}
		if len(record) == 0 {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(record[0], "\xef\xbb\xbf"))
		if first {
			first = false
			if headerNames[name] {
				continue
			}
		}
		names = append(names, name)
	}

	added := s.Store.AddBulkItems(c.Param("id"), names)
	logger.Infof("Imported %d participants into category %s", len(added), c.Param("id"))
	h.persist(c)
	c.JSON(http.StatusCreated, gin.H{"added": len(added), "items": added})
}

// UpdateItem renames an item or sets its win flag.
func (h *HTTPHandler) UpdateItem(c *gin.Context) {
	var req models.ItemUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}

	s := h.session(c)
	s.Store.UpdateItem(c.Param("id"), c.Param("itemId"), req)
	cat, ok := s.Store.Category(c.Param("id"))
	if !ok {
		errorJSON(c, http.StatusNotFound, services.ErrCategoryNotFound.Error())
		return
	}
	for _, it := range cat.Items {
		if it.ID == c.Param("itemId") {
			h.persist(c)
			c.JSON(http.StatusOK, it)
			return
		}
	}
	errorJSON(c, http.StatusNotFound, "participant not found")
}

// DeleteItem removes a participant. Deleting a missing participant succeeds.
func (h *HTTPHandler) DeleteItem(c *gin.Context) {
	h.session(c).Store.DeleteItem(c.Param("id"), c.Param("itemId"))
	h.persist(c)
	c.Status(http.StatusNoContent)
}

type drawRequest struct {
	CategoryID string `json:"categoryId"`
	Count      int    `json:"count"`
}

// rejection reasons reported to clients and metrics
const (
	reasonEmptyPool       = "empty_pool"
	reasonAlreadySpinning = "already_spinning"
	reasonNoCategory      = "category_not_found"
)

// StartDraw pre-selects winners and starts the spin. The response carries the
// fixed winners so the client can land the wheel on them.
func (h *HTTPHandler) StartDraw(c *gin.Context) {
	var req drawRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}

	s := h.session(c)
	categoryID := req.CategoryID
	if categoryID == "" {
		categoryID = s.Store.CurrentCategoryID()
	}

	spin, err := s.Draws.StartDraw(categoryID, req.Count)
	if err != nil {
		status, reason := http.StatusConflict, ""
		switch {
		case errors.Is(err, services.ErrNoEligibleItems):
			reason = reasonEmptyPool
		case errors.Is(err, services.ErrDrawInProgress):
			reason = reasonAlreadySpinning
		case errors.Is(err, services.ErrCategoryNotFound):
			status, reason = http.StatusNotFound, reasonNoCategory
		default:
			status, reason = http.StatusInternalServerError, "internal"
		}
		metrics.RecordDrawRejected(reason)
		c.JSON(status, gin.H{"started": false, "reason": reason, "message": err.Error()})
		return
	}

	metrics.RecordDrawStarted()
	h.hub.Publish(tenantID(c), notify.Event{Type: notify.EventDrawStarted, Data: spin})
	c.JSON(http.StatusAccepted, gin.H{"started": true, "spin": spin})
}

// GetDrawStatus reports whether a draw is spinning and its pending winners.
func (h *HTTPHandler) GetDrawStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.session(c).Draws.Status())
}

// HandleDrawComplete is registered with the service and runs after each commit.
func (h *HTTPHandler) HandleDrawComplete(tenantID string, completion services.Completion) {
	metrics.RecordDrawCompleted(len(completion.Winners), completion.Result != nil)
	h.hub.Publish(tenantID, notify.Event{Type: notify.EventDrawCompleted, Data: completion})
}

// GetHistory returns the draw ledger, newest first.
func (h *HTTPHandler) GetHistory(c *gin.Context) {
	c.JSON(http.StatusOK, h.session(c).Store.History())
}

// ClearHistory drops the ledger.
func (h *HTTPHandler) ClearHistory(c *gin.Context) {
	h.session(c).Store.ClearHistory()
	h.persist(c)
	c.Status(http.StatusNoContent)
}

// ExportHistoryCSV handles the request to download the draw history as a CSV file.
func (h *HTTPHandler) ExportHistoryCSV(c *gin.Context) {
	history := h.session(c).Store.History()

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment;filename=draw_history.csv")
	c.Status(http.StatusOK)

	// Add BOM to ensure UTF-8 compatibility in Excel
	c.Writer.Write([]byte("\xef\xbb\xbf"))

	w := csv.NewWriter(c.Writer)
	if err := w.Write([]string{"Time", "Category", "Winner", "Winner ID", "Draw ID"}); err != nil {
		logger.Errorf("Error writing CSV header: %v", err)
		return
	}
	for _, result := range history {
		ts := time.UnixMilli(result.Timestamp).Format(time.RFC3339)
		for _, winner := range result.Winners {
			row := []string{ts, result.CategoryName, winner.Name, winner.ID, result.ID}
			if err := w.Write(row); err != nil {
				logger.Errorf("Error writing CSV row: %v", err)
				return
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		logger.Errorf("Error flushing CSV writer: %v", err)
	}
}

// GetSettings returns the session settings.
func (h *HTTPHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.session(c).Store.Settings())
}

// UpdateSettings merges a partial settings document.
func (h *HTTPHandler) UpdateSettings(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}
	settings, err := h.session(c).Store.UpdateSettings(body)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid settings: "+err.Error())
		return
	}
	h.persist(c)
	c.JSON(http.StatusOK, settings)
}

// ExportData returns the whole session as a downloadable snapshot.
func (h *HTTPHandler) ExportData(c *gin.Context) {
	snap := h.session(c).Store.ExportData()
	c.Header("Content-Disposition", "attachment;filename=lucky_draw_backup.json")
	c.JSON(http.StatusOK, snap)
}

// ImportData replaces the parts of the session present in the uploaded snapshot.
func (h *HTTPHandler) ImportData(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	var in models.SnapshotImport
	if err := c.ShouldBindJSON(&in); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid snapshot: "+err.Error())
		return
	}

	s := h.session(c)
	if err := s.Draws.WhileIdle(func() { s.Store.ImportData(in) }); err != nil {
		errorJSON(c, http.StatusConflict, err.Error())
		return
	}
	h.persist(c)
	c.JSON(http.StatusOK, gin.H{
		"currentCategoryId": s.Store.CurrentCategoryID(),
		"categories":        len(s.Store.Categories()),
		"history":           len(s.Store.History()),
	})
}

// ResetAllData drops categories and history and recreates the default category.
func (h *HTTPHandler) ResetAllData(c *gin.Context) {
	s := h.session(c)
	err := s.Draws.WhileIdle(func() {
		s.Store.ResetAllData()
		s.Store.InitializeDefaultCategory()
	})
	if err != nil {
		errorJSON(c, http.StatusConflict, err.Error())
		return
	}
	h.persist(c)
	c.JSON(http.StatusOK, gin.H{"currentCategoryId": s.Store.CurrentCategoryID()})
}

// ClearSession forgets the tenant entirely, including its persisted state.
func (h *HTTPHandler) ClearSession(c *gin.Context) {
	if err := h.service.ClearSession(c.Request.Context(), tenantID(c)); err != nil {
		logger.Errorf("Failed to clear session for tenant %s: %v", tenantID(c), err)
		errorJSON(c, http.StatusInternalServerError, "failed to clear session")
		return
	}
	metrics.SetActiveSessions(h.service.ActiveSessions())
	c.SetCookie(TenantCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}
