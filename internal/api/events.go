package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pfrederiksen/ducksgather/internal/auth"
	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/filter"
	"github.com/pfrederiksen/ducksgather/internal/logger"
	"github.com/pfrederiksen/ducksgather/internal/submission"
	"github.com/pfrederiksen/ducksgather/internal/validate"
)

// EventHandler serves the event routes
type EventHandler struct {
	events    EventReader
	submitter Submitter
	saved     SavedEvents
	log       *logger.Logger
	now       func() time.Time
}

// EventResponse is the wire form of a stored event. Days are YYYY-MM-DD and
// clock times HH:MM:SS as stored.
type EventResponse struct {
	ID             int64     `json:"event_id"`
	Title          string    `json:"title"`
	Description    *string   `json:"description,omitempty"`
	Category       string    `json:"category"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	EndDate        string    `json:"end_date"`
	EndTime        string    `json:"end_time"`
	ImageURL       *string   `json:"image_url,omitempty"`
	ExternalURL    *string   `json:"external_url,omitempty"`
	LocationID     *int64    `json:"location_id,omitempty"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	CreatedBy      *string   `json:"created_by,omitempty"`
	IsScraped      bool      `json:"is_scraped"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewEventResponse converts a stored event
func NewEventResponse(e *event.Event) EventResponse {
	return EventResponse{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		Category:       e.Category,
		Date:           e.Date.Format(time.DateOnly),
		StartTime:      e.StartTime.Format(time.TimeOnly),
		EndDate:        e.EndDate.Format(time.DateOnly),
		EndTime:        e.EndTime.Format(time.TimeOnly),
		ImageURL:       e.ImageURL,
		ExternalURL:    e.ExternalURL,
		LocationID:     e.LocationID,
		OrganizationID: e.OrganizationID,
		CreatedBy:      e.CreatedBy,
		IsScraped:      e.IsScraped,
		CreatedAt:      e.CreatedAt,
	}
}

func responses(events []*event.Event) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, e := range events {
		out[i] = NewEventResponse(e)
	}
	return out
}

// List handles GET /api/events
func (h *EventHandler) List(c *gin.Context) {
	f, err := filter.FromQuery(c.Request.URL.Query(), h.now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": err.Error()})
		return
	}

	events, err := h.events.List(c.Request.Context(), f)
	if err != nil {
		h.log.Error("Failed to list events", logger.Fields{"filter": f.String()}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": responses(events),
		"count":  len(events),
	})
}

// GetByID handles GET /api/events/:id
func (h *EventHandler) GetByID(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}

	evt, err := h.events.GetByID(c.Request.Context(), id)
	if errors.Is(err, event.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	if err != nil {
		h.log.Error("Failed to get event", logger.Fields{"event_id": id}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get event"})
		return
	}

	c.JSON(http.StatusOK, NewEventResponse(evt))
}

// Create handles POST /api/events
func (h *EventHandler) Create(c *gin.Context) {
	claims, ok := auth.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var in submission.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	evt, err := h.submitter.Create(c.Request.Context(), claims.Principal(), in)
	var fail *validate.Failure
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	case errors.Is(err, submission.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.As(err, &fail):
		c.JSON(http.StatusBadRequest, gin.H{"error": fail.Error(), "field": fail.Field})
		return
	default:
		h.log.Error("Failed to create event", logger.Fields{"title": in.Title, "user_id": claims.Subject}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create event"})
		return
	}

	c.JSON(http.StatusCreated, NewEventResponse(evt))
}

// ListSaved handles GET /api/users/me/saved
func (h *EventHandler) ListSaved(c *gin.Context) {
	claims, ok := auth.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	events, err := h.saved.SavedEvents(c.Request.Context(), claims.Subject)
	if err != nil {
		h.log.Error("Failed to list saved events", logger.Fields{"user_id": claims.Subject}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list saved events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": responses(events),
		"count":  len(events),
	})
}

// Save handles PUT /api/users/me/saved/:id
func (h *EventHandler) Save(c *gin.Context) {
	claims, ok := auth.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id, ok := eventID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.events.GetByID(ctx, id); err != nil {
		if errors.Is(err, event.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		h.log.Error("Failed to get event", logger.Fields{"event_id": id}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save event"})
		return
	}

	p := claims.Principal()
	if err := h.saved.Ensure(ctx, p.ID, p.Email); err != nil {
		h.log.Error("Failed to register user", logger.Fields{"user_id": p.ID}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save event"})
		return
	}
	if err := h.saved.SaveEvent(ctx, p.ID, id); err != nil {
		h.log.Error("Failed to save event", logger.Fields{"user_id": p.ID, "event_id": id}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save event"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Unsave handles DELETE /api/users/me/saved/:id
func (h *EventHandler) Unsave(c *gin.Context) {
	claims, ok := auth.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	id, ok := eventID(c)
	if !ok {
		return
	}

	removed, err := h.saved.UnsaveEvent(c.Request.Context(), claims.Subject, id)
	if err != nil {
		h.log.Error("Failed to unsave event", logger.Fields{"user_id": claims.Subject, "event_id": id}, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unsave event"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event was not saved"})
		return
	}

	c.Status(http.StatusNoContent)
}

func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event id"})
		return 0, false
	}
	return id, true
}
