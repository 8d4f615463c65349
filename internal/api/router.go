// Package api serves the events HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pfrederiksen/ducksgather/internal/auth"
	"github.com/pfrederiksen/ducksgather/internal/event"
	"github.com/pfrederiksen/ducksgather/internal/filter"
	"github.com/pfrederiksen/ducksgather/internal/logger"
	"github.com/pfrederiksen/ducksgather/internal/metrics"
	"github.com/pfrederiksen/ducksgather/internal/submission"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// EventReader lists and fetches stored events
type EventReader interface {
	List(ctx context.Context, f *filter.Filter) ([]*event.Event, error)
	GetByID(ctx context.Context, id int64) (*event.Event, error)
}

// Submitter creates events for signed-in users
type Submitter interface {
	Create(ctx context.Context, actor auth.Principal, in submission.Input) (*event.Event, error)
}

// SavedEvents stores the events users mark as interesting
type SavedEvents interface {
	Ensure(ctx context.Context, userID, email string) error
	SaveEvent(ctx context.Context, userID string, eventID int64) error
	UnsaveEvent(ctx context.Context, userID string, eventID int64) (bool, error)
	SavedEvents(ctx context.Context, userID string) ([]*event.Event, error)
}

// Deps are the router's collaborators. Submitter, Saved, Tokens and
// Gatherer are optional; routes that need a missing one are not mounted.
type Deps struct {
	Events    EventReader
	Submitter Submitter
	Saved     SavedEvents
	Tokens    *auth.JWTManager
	Gatherer  prometheus.Gatherer
	HTTP      *metrics.HTTP
	Logger    *logger.Logger
	Now       func() time.Time
}

// NewRouter builds the gin engine
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = logger.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	router := gin.New()
	router.Use(ginLogger(d.Logger))
	router.Use(gin.Recovery())
	if d.HTTP != nil {
		router.Use(d.HTTP.Middleware())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	h := &EventHandler{events: d.Events, submitter: d.Submitter, saved: d.Saved, log: d.Logger, now: d.Now}

	apiGroup := router.Group("/api")
	events := apiGroup.Group("/events")
	events.GET("", h.List)
	events.GET("/:id", h.GetByID)

	if d.Tokens != nil {
		requireAuth := auth.Middleware(d.Tokens)
		if d.Submitter != nil {
			events.POST("", requireAuth, h.Create)
		}
		if d.Saved != nil {
			saved := apiGroup.Group("/users/me/saved", requireAuth)
			saved.GET("", h.ListSaved)
			saved.PUT("/:id", h.Save)
			saved.DELETE("/:id", h.Unsave)
		}
	}

	return router
}

func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("HTTP request", logger.Fields{
			"method":      method,
			"path":        path,
			"status_code": c.Writer.Status(),
			"client_ip":   c.ClientIP(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// Serve runs handler on addr until ctx is canceled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.Fields{"address": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	log.Info("HTTP server shutting down", nil)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
