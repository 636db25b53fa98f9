// Package downtimes implements the downtime event endpoints: entry, listing,
// editing, and the aggregate reporting views. Durations are always computed
// server-side from the two timestamps; a client-supplied duration is ignored.
package downtimes

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/downtime-tracker/downtime-tracker/internal/audit"
	"github.com/downtime-tracker/downtime-tracker/internal/db/models"
	"github.com/downtime-tracker/downtime-tracker/internal/db/repositories"
	"github.com/downtime-tracker/downtime-tracker/internal/middleware"
	"github.com/downtime-tracker/downtime-tracker/internal/telemetry"
)

// maxDurationMinutes caps a single event at 24 hours; longer outages are
// entered as one event per day.
const maxDurationMinutes = 1440

// Handlers handles downtime event endpoints
type Handlers struct {
	db        *sqlx.DB
	downtimes *repositories.DowntimeRepository
	audits    *repositories.AuditRepository
}

// NewHandlers creates a new downtime Handlers instance
func NewHandlers(db *sqlx.DB) *Handlers {
	return &Handlers{
		db:        db,
		downtimes: repositories.NewDowntimeRepository(db),
		audits:    repositories.NewAuditRepository(db),
	}
}

// DowntimeRequest is the payload for creating or updating a downtime event.
// DurationMinutes is intentionally absent: the server derives it.
type DowntimeRequest struct {
	LineID      int       `json:"line_id" binding:"required"`
	CategoryID  int       `json:"category_id" binding:"required"`
	ShiftID     *int      `json:"shift_id"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
	ReasonNotes string    `json:"reason_notes"`
	CrewSize    int       `json:"crew_size"`
}

// duration validates the time window and returns the duration in whole
// minutes. Events must last at least one full minute and at most 24 hours.
func (r *DowntimeRequest) duration() (int, error) {
	if !r.EndTime.After(r.StartTime) {
		return 0, errors.New("end_time must be after start_time")
	}
	minutes := int(r.EndTime.Sub(r.StartTime).Minutes())
	if minutes < 1 {
		return 0, errors.New("event must last at least one minute")
	}
	if minutes > maxDurationMinutes {
		return 0, errors.New("event cannot exceed 24 hours; split longer outages into daily events")
	}
	if r.CrewSize < 0 {
		return 0, errors.New("crew_size cannot be negative")
	}
	return minutes, nil
}

// canEdit reports whether the user may modify the event. Operators edit their
// own entries; administrators edit anything.
func canEdit(user *models.User, d *models.Downtime) bool {
	return user != nil && (user.IsAdmin || user.Username == d.EnteredBy)
}

// @Summary      List downtime events
// @Description  Paginated downtime event listing with optional filters.
// @Tags         Downtimes
// @Security     Bearer
// @Produce      json
// @Param        facility_id  query  int     false  "Filter by facility"
// @Param        line_id      query  int     false  "Filter by production line"
// @Param        category_id  query  int     false  "Filter by category"
// @Param        shift_id     query  int     false  "Filter by shift"
// @Param        entered_by   query  string  false  "Filter by entering user"
// @Param        start_date   query  string  false  "Events starting on or after (YYYY-MM-DD)"
// @Param        end_date     query  string  false  "Events starting before (YYYY-MM-DD, exclusive)"
// @Param        page         query  int     false  "Page number (default 1)"
// @Param        per_page     query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "downtimes, pagination"
// @Failure      400  {object}  map[string]interface{}  "Invalid filter"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/downtimes [get]
// ListHandler lists downtime events with filters and pagination
// GET /api/v1/downtimes
func (h *Handlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filters, err := parseFilters(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Deactivated events are only visible to administrators
		if c.Query("include_inactive") == "true" {
			if user := middleware.CurrentUser(c); user != nil && user.IsAdmin {
				filters.IncludeInactive = true
			}
		}

		page, perPage := pagination(c)
		events, total, err := h.downtimes.List(c.Request.Context(), *filters, perPage, (page-1)*perPage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list downtime events"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"downtimes": events,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// @Summary      Recent downtime events
// @Description  Most recent events across all lines, for the entry screen's activity feed.
// @Tags         Downtimes
// @Security     Bearer
// @Produce      json
// @Param        days   query  int  false  "Lookback window in days (default 7)"
// @Param        limit  query  int  false  "Maximum rows (default 50, max 200)"
// @Success      200  {object}  map[string]interface{}  "downtimes"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/downtimes/recent [get]
// RecentHandler lists recent downtime events
// GET /api/v1/downtimes/recent
func (h *Handlers) RecentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if days < 1 {
			days = 7
		}
		if limit < 1 || limit > 200 {
			limit = 50
		}

		events, err := h.downtimes.ListRecent(c.Request.Context(), days, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list recent downtime events"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"downtimes": events})
	}
}

// @Summary      Get downtime event
// @Tags         Downtimes
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Downtime event ID"
// @Success      200  {object}  map[string]interface{}  "downtime"
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/downtimes/{id} [get]
// GetHandler retrieves a downtime event by ID
// GET /api/v1/downtimes/:id
func (h *Handlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid downtime id"})
			return
		}

		event, err := h.downtimes.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve downtime event"})
			return
		}
		if event == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Downtime event not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"downtime": event})
	}
}

// @Summary      Record downtime event
// @Description  Create a downtime event. Duration is computed server-side from start_time and end_time.
// @Tags         Downtimes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  DowntimeRequest  true  "Downtime event"
// @Success      201  {object}  map[string]interface{}  "downtime"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      422  {object}  map[string]interface{}  "Referenced line or category is inactive"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/downtimes [post]
// CreateHandler records a new downtime event
// POST /api/v1/downtimes
func (h *Handlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DowntimeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		minutes, err := req.duration()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user := middleware.CurrentUser(c)
		event := &models.Downtime{
			LineID:          req.LineID,
			CategoryID:      req.CategoryID,
			ShiftID:         req.ShiftID,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			DurationMinutes: minutes,
			ReasonNotes:     req.ReasonNotes,
			CrewSize:        req.CrewSize,
			EnteredBy:       user.Username,
		}

		tx, err := h.db.BeginTxx(c.Request.Context(), nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record downtime event"})
			return
		}
		defer tx.Rollback()

		if err := h.downtimes.WithTx(tx).Create(c.Request.Context(), event); err != nil {
			if errors.Is(err, repositories.ErrParentInactive) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Referenced line or category is inactive or does not exist"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record downtime event"})
			return
		}

		cs := audit.NewChangeSet("downtime", event.ID, models.AuditActionCreate, middleware.OriginFrom(c))
		cs.Compare("line_id", nil, event.LineID)
		cs.Compare("category_id", nil, event.CategoryID)
		cs.Compare("shift_id", nil, event.ShiftID)
		cs.Compare("start_time", nil, event.StartTime)
		cs.Compare("end_time", nil, event.EndTime)
		cs.Compare("duration_minutes", nil, event.DurationMinutes)
		cs.Compare("reason_notes", nil, event.ReasonNotes)
		cs.Compare("crew_size", nil, event.CrewSize)
		if err := h.audits.WithTx(tx).CreateBatch(c.Request.Context(), cs.Changes()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record downtime event"})
			return
		}

		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record downtime event"})
			return
		}

		// Re-read so the response carries the joined line and facility names
		created, err := h.downtimes.GetByID(c.Request.Context(), event.ID)
		if err != nil || created == nil {
			created = event
		}
		telemetry.DowntimeEventsRecordedTotal.WithLabelValues(created.FacilityName).Inc()

		c.JSON(http.StatusCreated, gin.H{"downtime": created})
	}
}

// @Summary      Update downtime event
// @Description  Edit an event's fields. Only the entering user or an administrator may edit; every changed field is audited.
// @Tags         Downtimes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  int              true  "Downtime event ID"
// @Param        body  body  DowntimeRequest  true  "Updated event"
// @Success      200  {object}  map[string]interface{}  "downtime"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      403  {object}  map[string]interface{}  "Not the entering user or an administrator"
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/downtimes/{id} [put]
// UpdateHandler edits a downtime event
// PUT /api/v1/downtimes/:id
func (h *Handlers) UpdateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid downtime id"})
			return
		}

		var req DowntimeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		minutes, err := req.duration()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		existing, err := h.downtimes.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve downtime event"})
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Downtime event not found"})
			return
		}

		user := middleware.CurrentUser(c)
		if !canEdit(user, existing) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the entering user or an administrator may edit this event"})
			return
		}

		cs := audit.NewChangeSet("downtime", existing.ID, models.AuditActionUpdate, middleware.OriginFrom(c))
		cs.Compare("line_id", existing.LineID, req.LineID)
		cs.Compare("category_id", existing.CategoryID, req.CategoryID)
		cs.Compare("shift_id", existing.ShiftID, req.ShiftID)
		cs.Compare("start_time", existing.StartTime, req.StartTime)
		cs.Compare("end_time", existing.EndTime, req.EndTime)
		cs.Compare("duration_minutes", existing.DurationMinutes, minutes)
		cs.Compare("reason_notes", existing.ReasonNotes, req.ReasonNotes)
		cs.Compare("crew_size", existing.CrewSize, req.CrewSize)

		if cs.Empty() {
			c.JSON(http.StatusOK, gin.H{"downtime": existing})
			return
		}

		existing.LineID = req.LineID
		existing.CategoryID = req.CategoryID
		existing.ShiftID = req.ShiftID
		existing.StartTime = req.StartTime
		existing.EndTime = req.EndTime
		existing.DurationMinutes = minutes
		existing.ReasonNotes = req.ReasonNotes
		existing.CrewSize = req.CrewSize

		tx, err := h.db.BeginTxx(c.Request.Context(), nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update downtime event"})
			return
		}
		defer tx.Rollback()

		if err := h.downtimes.WithTx(tx).Update(c.Request.Context(), existing, user.Username); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update downtime event"})
			return
		}
		if err := h.audits.WithTx(tx).CreateBatch(c.Request.Context(), cs.Changes()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update downtime event"})
			return
		}
		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update downtime event"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"downtime": existing})
	}
}

// @Summary      Deactivate downtime event
// @Description  Soft-delete an event. Only the entering user or an administrator may deactivate.
// @Tags         Downtimes
// @Security     Bearer
// @Produce      json
// @Param        id  path  int  true  "Downtime event ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      403  {object}  map[string]interface{}  "Not the entering user or an administrator"
// @Failure      404  {object}  map[string]interface{}  "Not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/downtimes/{id} [delete]
// DeactivateHandler soft-deletes a downtime event
// DELETE /api/v1/downtimes/:id
func (h *Handlers) DeactivateHandler() gin.HandlerFunc {
	return h.setActive(false, models.AuditActionDeactivate)
}

// ReactivateHandler restores a soft-deleted downtime event
// POST /api/v1/downtimes/:id/reactivate
func (h *Handlers) ReactivateHandler() gin.HandlerFunc {
	return h.setActive(true, models.AuditActionReactivate)
}

func (h *Handlers) setActive(active bool, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid downtime id"})
			return
		}

		existing, err := h.downtimes.GetByID(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve downtime event"})
			return
		}
		if existing == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Downtime event not found"})
			return
		}

		user := middleware.CurrentUser(c)
		if !canEdit(user, existing) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only the entering user or an administrator may modify this event"})
			return
		}

		tx, err := h.db.BeginTxx(c.Request.Context(), nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update downtime event"})
			return
		}
		defer tx.Rollback()

		repo := h.downtimes.WithTx(tx)
		if active {
			err = repo.Reactivate(c.Request.Context(), id, user.Username)
		} else {
			err = repo.Deactivate(c.Request.Context(), id, user.Username)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update downtime event"})
			return
		}

		cs := audit.NewChangeSet("downtime", existing.ID, action, middleware.OriginFrom(c))
		cs.Compare("is_active", existing.IsActive, active)
		if err := h.audits.WithTx(tx).CreateBatch(c.Request.Context(), cs.Changes()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update downtime event"})
			return
		}
		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update downtime event"})
			return
		}

		message := "Downtime event deactivated"
		if active {
			message = "Downtime event reactivated"
		}
		c.JSON(http.StatusOK, gin.H{"message": message})
	}
}

// @Summary      Downtime summary
// @Description  Aggregate totals grouped by category, facility, or line over a date range.
// @Tags         Downtimes
// @Security     Bearer
// @Produce      json
// @Param        group_by    query  string  false  "category (default), facility, or line"
// @Param        start_date  query  string  false  "Range start (YYYY-MM-DD, default 30 days ago)"
// @Param        end_date    query  string  false  "Range end, exclusive (YYYY-MM-DD, default tomorrow)"
// @Success      200  {object}  map[string]interface{}  "summary, group_by, start_date, end_date"
// @Failure      400  {object}  map[string]interface{}  "Invalid parameters"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/downtimes/summary [get]
// SummaryHandler aggregates downtime by category, facility, or line
// GET /api/v1/downtimes/summary
func (h *Handlers) SummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupBy := c.DefaultQuery("group_by", "category")
		start, end, err := dateRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rows, err := h.downtimes.Summarize(c.Request.Context(), groupBy, start, end)
		if err != nil {
			if errors.Is(err, repositories.ErrUnknownGrouping) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "group_by must be category, facility, or line"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to summarize downtime"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"summary":    rows,
			"group_by":   groupBy,
			"start_date": start.Format("2006-01-02"),
			"end_date":   end.Format("2006-01-02"),
		})
	}
}

// @Summary      Top downtime issues
// @Description  Categories ranked by total downtime minutes over a date range.
// @Tags         Downtimes
// @Security     Bearer
// @Produce      json
// @Param        start_date  query  string  false  "Range start (YYYY-MM-DD, default 30 days ago)"
// @Param        end_date    query  string  false  "Range end, exclusive (YYYY-MM-DD, default tomorrow)"
// @Param        limit       query  int     false  "Maximum rows (default 10, max 50)"
// @Success      200  {object}  map[string]interface{}  "issues"
// @Failure      400  {object}  map[string]interface{}  "Invalid parameters"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/downtimes/top-issues [get]
// TopIssuesHandler ranks categories by total downtime
// GET /api/v1/downtimes/top-issues
func (h *Handlers) TopIssuesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start, end, err := dateRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		if limit < 1 || limit > 50 {
			limit = 10
		}

		rows, err := h.downtimes.TopIssues(c.Request.Context(), start, end, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rank downtime issues"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"issues": rows})
	}
}

// ---------------------------------------------------------------------------
// Query parsing helpers
// ---------------------------------------------------------------------------

func pagination(c *gin.Context) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

func parseFilters(c *gin.Context) (*repositories.DowntimeFilters, error) {
	filters := &repositories.DowntimeFilters{}

	for name, dst := range map[string]**int{
		"facility_id": &filters.FacilityID,
		"line_id":     &filters.LineID,
		"category_id": &filters.CategoryID,
		"shift_id":    &filters.ShiftID,
	} {
		if raw := c.Query(name); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return nil, errors.New("invalid " + name)
			}
			*dst = &id
		}
	}

	if enteredBy := c.Query("entered_by"); enteredBy != "" {
		filters.EnteredBy = &enteredBy
	}

	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, errors.New("invalid start_date, expected YYYY-MM-DD")
		}
		filters.StartDate = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, errors.New("invalid end_date, expected YYYY-MM-DD")
		}
		// Exclusive upper bound: include the whole named day
		t = t.AddDate(0, 0, 1)
		filters.EndDate = &t
	}

	return filters, nil
}

// dateRange parses start_date/end_date query params, defaulting to the last
// 30 days. The end bound is exclusive and includes the whole named day.
func dateRange(c *gin.Context) (start, end time.Time, err error) {
	now := time.Now()
	start = now.AddDate(0, 0, -30)
	end = now.AddDate(0, 0, 1)

	if raw := c.Query("start_date"); raw != "" {
		start, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return start, end, errors.New("invalid start_date, expected YYYY-MM-DD")
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		end, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return start, end, errors.New("invalid end_date, expected YYYY-MM-DD")
		}
		end = end.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		return start, end, errors.New("end_date must not be before start_date")
	}
	return start, end, nil
}
