package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/gaze-engine/internal/api/handlers"
	"github.com/your-org/gaze-engine/internal/api/ws"
	"github.com/your-org/gaze-engine/internal/artifacts"
	"github.com/your-org/gaze-engine/internal/auth"
	"github.com/your-org/gaze-engine/internal/catalog"
	"github.com/your-org/gaze-engine/internal/faces"
	"github.com/your-org/gaze-engine/internal/scanner"
	"github.com/your-org/gaze-engine/internal/scheduler"
	"github.com/your-org/gaze-engine/internal/search"
)

type RouterConfig struct {
	BearerToken string
	Store       *catalog.Store
	Artifacts   *artifacts.Store
	Scanner     *scanner.Scanner
	Scheduler   *scheduler.Scheduler
	Matcher     *faces.Matcher
	Planner     *search.Planner
	Hub         *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	systemH := handlers.NewSystemHandler(cfg.Store, cfg.Artifacts)
	r.GET("/health", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The WebSocket route checks its own token (auth.WSToken), since a
	// browser upgrade request cannot carry an Authorization header.
	r.GET("/v1/ws", cfg.Hub.HandleWS)

	v1 := r.Group("/v1")
	v1.Use(auth.BearerMiddleware(cfg.BearerToken))

	libH := handlers.NewLibraryHandler(cfg.Store, cfg.Scanner)
	v1.POST("/libraries", libH.Create)
	v1.GET("/libraries", libH.List)
	v1.DELETE("/libraries/:id", libH.Delete)
	v1.POST("/libraries/:id/scan", libH.Scan)

	mediaH := handlers.NewMediaHandler(cfg.Store)
	v1.GET("/media", mediaH.List)
	v1.GET("/media/:id", mediaH.Get)
	v1.DELETE("/media/:id", mediaH.Delete)
	v1.GET("/videos/:id/frames", mediaH.Frames)
	v1.GET("/videos/:id/detections", mediaH.Detections)

	searchH := handlers.NewSearchHandler(cfg.Planner)
	v1.POST("/search", searchH.Search)

	jobsH := handlers.NewJobsHandler(cfg.Store, cfg.Scheduler)
	v1.GET("/jobs/status", jobsH.Status)
	v1.POST("/jobs/start", jobsH.Start)
	v1.POST("/jobs/pause", jobsH.Pause)
	v1.POST("/jobs/resume", jobsH.Resume)
	v1.DELETE("/jobs/:job_id", jobsH.Stop)

	facesH := handlers.NewFacesHandler(cfg.Store, cfg.Matcher)
	v1.POST("/faces/:face_id/assign", facesH.Assign)
	v1.POST("/faces/merge", facesH.Merge)
	v1.POST("/faces/cluster", facesH.Cluster)
	v1.PUT("/faces/persons/:id/recognition-mode", facesH.SetRecognitionMode)
	v1.GET("/faces/review-queue", facesH.ReviewQueue)

	backupH := handlers.NewBackupHandler(cfg.Store)
	v1.GET("/backup/export", backupH.Export)
	v1.POST("/backup/restore", backupH.Restore)

	maintH := handlers.NewMaintenanceHandler(cfg.Store, cfg.Artifacts)
	v1.POST("/maintenance/wipe-derived", maintH.WipeDerived)
	v1.POST("/maintenance/detect-faces", maintH.DetectFaces)

	return r
}
