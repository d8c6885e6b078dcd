package dashboard

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// registerRoutes sets up all dashboard routes on the Gin router. baseCtx
// bounds background exports to the server's lifetime rather than a
// request's.
func registerRoutes(baseCtx context.Context, router *gin.Engine, db *gorm.DB, hub *Hub, runner *Runner) {
	router.GET("/", handleIndex())

	api := router.Group("/api")
	api.GET("/sessions", handleSessionList(db))
	api.GET("/sessions/:id", handleSessionDetail(db))
	api.GET("/exports", handleExportList(hub))
	api.POST("/sessions/:id/export", handleExportTrigger(baseCtx, db, runner))

	router.GET("/events", handleSSE(hub))
}

func handleIndex() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "index.html", gin.H{
			"page": "sessions",
		})
	}
}

func handleSessionList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := SessionSummary(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func handleSessionDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := SessionByID(db, c.Param("id"))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func handleExportList(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Snapshot())
	}
}

func handleExportTrigger(baseCtx context.Context, db *gorm.DB, runner *Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		if runner == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "exports not configured"})
			return
		}

		s, err := sessionModel(db, c.Param("id"))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if s.IsActive() {
			c.JSON(http.StatusConflict, gin.H{"error": "session is still being captured"})
			return
		}

		if !runner.Trigger(baseCtx, s) {
			c.JSON(http.StatusConflict, gin.H{"error": "export already running"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"session_id": s.ID, "status": "started"})
	}
}
