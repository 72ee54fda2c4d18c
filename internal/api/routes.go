package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"component": "updater-status-api",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	updaters := s.router.Group("/updaters")
	updaters.GET("", s.requireManager(func(c *gin.Context) {
		c.JSON(http.StatusOK, s.manager.Summary())
	}))

	updaters.GET("/streams", s.requireManager(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"streams": s.manager.Descriptors()})
	}))

	updaters.GET("/types", s.requireManager(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"types": s.manager.Types()})
	}))

	updaters.GET("/types/:id", s.requireManager(func(c *gin.Context) {
		id, ok := parseUpdaterID(c)
		if !ok {
			return
		}
		typ, ok := s.manager.TypeOf(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "updater does not exist"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "type": typ})
	}))

	updaters.GET("/agency/:feedId", s.requireManager(func(c *gin.Context) {
		feedID := c.Param("feedId")
		c.JSON(http.StatusOK, gin.H{
			"feedId":   feedID,
			"agencies": s.manager.Agencies(feedID),
		})
	}))

	updaters.GET("/updates", s.requireManager(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"received": s.manager.Received()})
	}))

	updaters.GET("/updates/types", s.requireManager(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"types": s.manager.UpdateTypes()})
	}))

	updaters.GET("/updates/applied", s.requireManager(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"applied": s.manager.Applied()})
	}))

	updaters.GET("/updates/errors", s.requireManager(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"errors": s.manager.Errors()})
	}))

	updaters.GET("/updates/errors/last", s.requireManager(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"errors": s.manager.LastErrors()})
	}))

	updaters.GET("/updates/last", s.requireManager(func(c *gin.Context) {
		c.JSON(http.StatusOK, s.manager.LastAppliedReceived())
	}))

	updaters.GET("/updates/ratio", s.requireManager(func(c *gin.Context) {
		c.JSON(http.StatusOK, s.manager.ReceivedApplied())
	}))

	updaters.GET("/updates/applied/feed/:feedId", s.requireManager(func(c *gin.Context) {
		feedID := c.Param("feedId")
		c.JSON(http.StatusOK, gin.H{
			"feedId":  feedID,
			"applied": s.manager.AppliedPerFeed(feedID),
		})
	}))

	updaters.GET("/updates/applied/feed/:feedId/trip/:tripId", s.requireManager(func(c *gin.Context) {
		feedID := c.Param("feedId")
		tripID := c.Param("tripId")
		c.JSON(http.StatusOK, gin.H{
			"feedId": feedID,
			"tripId": tripID,
			"types":  s.manager.AppliedPerFeedPerTrip(feedID, tripID),
		})
	}))

	updaters.GET("/updates/applied/window/:minutes", s.requireManager(func(c *gin.Context) {
		minutes, err := strconv.Atoi(c.Param("minutes"))
		if err != nil || minutes <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "minutes must be a positive integer"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"minutes": minutes,
			"applied": s.manager.AppliedLastMinutes(minutes),
		})
	}))

	// Registered last so the parameterized route does not shadow the
	// literal /updaters/... paths above.
	updaters.GET("/:id", s.requireManager(func(c *gin.Context) {
		id, ok := parseUpdaterID(c)
		if !ok {
			return
		}
		info, ok := s.manager.Updater(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "updater does not exist"})
			return
		}
		c.JSON(http.StatusOK, info)
	}))
}

// requireManager answers 404 when no updater manager is attached, the
// same way the status surface behaves before any updater is configured.
func (s *Server) requireManager(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.manager == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no updaters running"})
			return
		}
		handler(c)
	}
}

func parseUpdaterID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "updater id must be a non-negative integer"})
		return 0, false
	}
	return id, true
}
