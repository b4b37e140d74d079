package bridge

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"sgbridge/internal/audit"
	"sgbridge/internal/constants"
	"sgbridge/internal/logger"
	pkgerrors "sgbridge/pkg/errors"
)

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := pkgerrors.ToHTTPStatus(err)
	response := pkgerrors.ToErrorResponse(err)

	c.JSON(status, response)
}

type Handler struct {
	BaseHandler
	Bridge *Bridge
	Store  audit.Store
}

func NewHandler(bridge *Bridge, store audit.Store, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		Bridge:      bridge,
		Store:       store,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.Liveness)

	router.GET("/sg2jira/:settings", h.ShowSG2JiraSettings)
	router.POST("/sg2jira/:settings", h.SyncInJira)
	router.POST("/sg2jira/:settings/:entity_type/:entity_id", h.SyncInJira)

	router.GET("/jira2sg/:settings", h.ShowJira2SGSettings)
	router.POST("/jira2sg/:settings", h.SyncInShotgun)
	router.POST("/jira2sg/:settings/:issue_type/:issue_key", h.SyncInShotgun)

	router.POST("/admin/reset", h.AdminReset)

	v1 := router.Group("/api/v1")
	{
		records := v1.Group("/audit")
		{
			records.GET("/records", h.GetAuditRecords)
		}
	}
}

// Liveness godoc
// @Summary      Liveness check
// @Description  Report that the server is alive and which sync settings it handles
// @Tags         bridge
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       / [get]
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":  constants.ServiceNameBridge,
		"status":   "The server is alive",
		"settings": h.Bridge.SettingsNames(),
	})
}

// ShowSG2JiraSettings godoc
// @Summary      Show sg2jira settings
// @Description  Confirm that the given settings name is configured for tracker to Jira syncing
// @Tags         bridge
// @Produce      json
// @Param        settings  path      string  true  "Settings name"
// @Success      200       {object}  map[string]interface{}
// @Failure      400       {object}  map[string]interface{}
// @Router       /sg2jira/{settings} [get]
func (h *Handler) ShowSG2JiraSettings(c *gin.Context) {
	h.showSettings(c, "Shotgun to Jira")
}

// ShowJira2SGSettings godoc
// @Summary      Show jira2sg settings
// @Description  Confirm that the given settings name is configured for Jira to tracker syncing
// @Tags         bridge
// @Produce      json
// @Param        settings  path      string  true  "Settings name"
// @Success      200       {object}  map[string]interface{}
// @Failure      400       {object}  map[string]interface{}
// @Router       /jira2sg/{settings} [get]
func (h *Handler) ShowJira2SGSettings(c *gin.Context) {
	h.showSettings(c, "Jira to Shotgun")
}

func (h *Handler) showSettings(c *gin.Context, title string) {
	settings := c.Param("settings")
	if !h.Bridge.HasSettings(settings) {
		h.HandleError(c, invalidSettingsName(settings))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":   title,
		"message": fmt.Sprintf("Syncing with %s settings.", settings),
	})
}

// SyncInJira godoc
// @Summary      Sync a tracker change into Jira
// @Description  Accept a tracker event payload and dispatch it to the configured syncer. The entity can come from the path or from the payload's entity_type and entity_id fields.
// @Tags         bridge
// @Accept       json
// @Produce      json
// @Param        settings     path      string  true   "Settings name"
// @Param        entity_type  path      string  false  "Tracker entity type"
// @Param        entity_id    path      int     false  "Tracker entity id"
// @Success      200          {object}  map[string]interface{}
// @Failure      400          {object}  map[string]interface{}
// @Failure      500          {object}  map[string]interface{}
// @Router       /sg2jira/{settings}/{entity_type}/{entity_id} [post]
func (h *Handler) SyncInJira(c *gin.Context) {
	settings := c.Param("settings")
	if !h.Bridge.HasSettings(settings) {
		h.HandleError(c, invalidSettingsName(settings))
		return
	}

	payload, err := h.readPayload(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	entityType := c.Param("entity_type")
	entityKey := c.Param("entity_id")
	if entityType == "" || entityKey == "" {
		entityType, _ = payload["entity_type"].(string)
		entityKey = entityIDString(payload["entity_id"])
	}
	if entityType == "" || entityKey == "" {
		h.HandleError(c, pkgerrors.ErrValidation.WithDetail("message",
			fmt.Sprintf("Invalid request payload %v, unable to retrieve a Shotgun Entity type and its id.", payload)))
		return
	}

	entityID, err := strconv.ParseInt(entityKey, 10, 64)
	if err != nil {
		h.HandleError(c, pkgerrors.ErrValidation.WithDetail("message",
			fmt.Sprintf("Invalid Shotgun %s id %s, it must be a number.", entityType, entityKey)))
		return
	}

	if err := h.Bridge.SyncInJira(c.Request.Context(), settings, entityType, entityID, payload); err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "POST request successful"})
}

// SyncInShotgun godoc
// @Summary      Sync a Jira change into the tracker
// @Description  Accept a Jira webhook payload and dispatch it to the configured syncer. The issue type and key must be part of the path.
// @Tags         bridge
// @Accept       json
// @Produce      json
// @Param        settings   path      string  true  "Settings name"
// @Param        issue_type path      string  true  "Jira resource type"
// @Param        issue_key  path      string  true  "Jira resource key"
// @Success      200        {object}  map[string]interface{}
// @Failure      400        {object}  map[string]interface{}
// @Failure      500        {object}  map[string]interface{}
// @Router       /jira2sg/{settings}/{issue_type}/{issue_key} [post]
func (h *Handler) SyncInShotgun(c *gin.Context) {
	settings := c.Param("settings")
	if !h.Bridge.HasSettings(settings) {
		h.HandleError(c, invalidSettingsName(settings))
		return
	}

	issueType := c.Param("issue_type")
	issueKey := c.Param("issue_key")
	if issueType == "" || issueKey == "" {
		// The webhook payload has no reliable resource type field, so the
		// path must carry it.
		h.HandleError(c, pkgerrors.ErrValidation.WithDetail("message",
			fmt.Sprintf("Invalid request path %s, it must include a Jira resource type and its key", c.Request.URL.Path)))
		return
	}

	payload, err := h.readPayload(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.Bridge.SyncInShotgun(c.Request.Context(), settings, issueType, issueKey, payload); err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "POST request successful"})
}

// AdminReset godoc
// @Summary      Reset the bridge
// @Description  Clear the cached registry schema so the next sync request re-reads it
// @Tags         admin
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]interface{}
// @Router       /admin/reset [post]
func (h *Handler) AdminReset(c *gin.Context) {
	if err := h.Bridge.Reset(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// GetAuditRecords godoc
// @Summary      Get sync audit records
// @Description  Get the most recent sync audit records
// @Tags         audit
// @Produce      json
// @Param        limit  query     int  false  "Maximum number of records to return (1-1000)"  default(100)
// @Success      200    {array}   audit.Entry
// @Failure      500    {object}  map[string]interface{}
// @Router       /audit/records [get]
func (h *Handler) GetAuditRecords(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))

	records, err := h.Store.Recent(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// readPayload decodes the request body. A missing content type is assumed
// to be JSON; anything else must declare application/json. An empty body
// yields an empty payload.
func (h *Handler) readPayload(c *gin.Context) (map[string]interface{}, error) {
	contentType := c.GetHeader("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "application/json") {
		return nil, pkgerrors.ErrValidation.WithDetail("message",
			fmt.Sprintf("Invalid content-type %s, it must be 'application/json'", contentType))
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, pkgerrors.ErrValidation.WithCause(err)
	}

	payload := map[string]interface{}{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, pkgerrors.ErrValidation.WithCause(err)
		}
	}
	return payload, nil
}

func invalidSettingsName(settings string) error {
	return pkgerrors.ErrValidation.WithDetail("message",
		fmt.Sprintf("Invalid settings name %s", settings))
}

// entityIDString renders a payload entity id for parsing. Ids arrive as
// JSON numbers or strings depending on the sender.
func entityIDString(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	default:
		return fmt.Sprintf("%v", id)
	}
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultAuditLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxAuditLimit {
		return constants.DefaultAuditLimit
	}
	return parsed
}
