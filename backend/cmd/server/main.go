package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"notegraph/backend/internal/adapter"
	"notegraph/backend/internal/analysis"
	"notegraph/backend/internal/graph"
	"notegraph/backend/internal/ingest"
	"notegraph/backend/internal/lifecycle"
	"notegraph/backend/internal/maintenance"
	"notegraph/backend/internal/scheduler"
	"notegraph/backend/internal/search"
	"notegraph/backend/pkg/config"
	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting notegraph server...")

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	// Wire the components
	repo := graph.NewRepository(driver)
	llm := adapter.NewLLMAdapter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ModelID)
	extractor := adapter.NewExtractor(llm)
	analyzer := adapter.NewQueryAnalyzer(llm)
	embedder := adapter.NewOpenAIEmbedder(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	vectors := adapter.NewVectorCache()
	contexts := analysis.NewContextCache()

	orchestrator := analysis.NewOrchestrator(repo, extractor, contexts, vectors, cfg)
	engine := search.NewEngine(repo, embedder, vectors, analyzer, cfg)
	lifecycleMgr := lifecycle.NewManager(repo, cfg)
	operator := maintenance.NewOperator(repo, cfg)
	ingestSvc := ingest.NewService(repo, orchestrator, vectors, ingest.NewWebClipper())

	sched := scheduler.New(
		scheduler.Job{
			Name:     "relation_weight_update",
			Interval: cfg.DecayInterval,
			Run:      lifecycleMgr.RunDecayCycle,
		},
		scheduler.Job{
			Name:     "embedding_sync",
			Interval: cfg.SyncInterval,
			Run:      engine.SyncEmbeddings,
		},
		scheduler.Job{
			Name:     "statistics",
			Interval: cfg.StatisticsInterval,
			Run: func(ctx context.Context) error {
				_, err := operator.Snapshot(ctx)
				return err
			},
		},
		scheduler.Job{
			Name:     "data_cleanup",
			Interval: cfg.CleanupInterval,
			Run: func(ctx context.Context) error {
				if _, err := lifecycleMgr.Prune(ctx); err != nil {
					return err
				}
				if _, err := operator.RemoveOrphans(ctx, ""); err != nil {
					return err
				}
				_, err := operator.TrimAllSessions(ctx)
				return err
			},
		},
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/search", func(c *gin.Context) {
			var req struct {
				UserID      string `json:"user_id" binding:"required"`
				Query       string `json:"query" binding:"required"`
				Strategy    string `json:"strategy"`
				Category    string `json:"category"`
				StartDate   string `json:"start_date"`
				EndDate     string `json:"end_date"`
				Limit       int    `json:"limit"`
				WithSummary bool   `json:"with_summary"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			searchReq := search.Request{
				UserID:      req.UserID,
				Query:       req.Query,
				Strategy:    req.Strategy,
				Category:    req.Category,
				Limit:       req.Limit,
				WithSummary: req.WithSummary,
			}
			var ok bool
			if searchReq.StartDate, ok = parseDate(c, req.StartDate); !ok {
				return
			}
			if searchReq.EndDate, ok = parseDate(c, req.EndDate); !ok {
				return
			}

			resp, err := engine.Search(c.Request.Context(), searchReq)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, resp)
		})

		api.GET("/search/suggestions", func(c *gin.Context) {
			userID := c.Query("user_id")
			if userID == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
				return
			}
			limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
			suggestions := engine.History().Suggestions(userID, c.Query("prefix"), limit)
			c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
		})

		api.POST("/notes", func(c *gin.Context) {
			var req struct {
				UserID   string `json:"user_id" binding:"required"`
				Content  string `json:"content" binding:"required"`
				Category string `json:"category"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			noteID, report, err := ingestSvc.CreateNote(c.Request.Context(), req.UserID, req.Content, req.Category)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusCreated, gin.H{"id": noteID, "analysis": report})
		})

		api.POST("/notes/clip", func(c *gin.Context) {
			var req struct {
				UserID   string `json:"user_id" binding:"required"`
				URL      string `json:"url" binding:"required"`
				Category string `json:"category"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			noteID, report, err := ingestSvc.ClipURL(c.Request.Context(), req.UserID, req.URL, req.Category)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusCreated, gin.H{"id": noteID, "analysis": report})
		})

		api.GET("/notes/:id/related", func(c *gin.Context) {
			limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
			related, err := repo.RelatedNotes(c.Request.Context(), c.Param("id"), limit)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"related": related})
		})

		api.POST("/events", func(c *gin.Context) {
			var req struct {
				UserID      string `json:"user_id" binding:"required"`
				Title       string `json:"title" binding:"required"`
				Description string `json:"description"`
				Category    string `json:"category"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			eventID, report, err := ingestSvc.CreateEvent(c.Request.Context(), req.UserID, req.Title, req.Description, req.Category)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusCreated, gin.H{"id": eventID, "analysis": report})
		})

		api.GET("/maintenance/duplicates", func(c *gin.Context) {
			limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
			pairs, err := operator.DetectDuplicates(c.Request.Context(), limit)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"duplicates": pairs})
		})

		api.POST("/maintenance/merge", func(c *gin.Context) {
			var req struct {
				AID        string `json:"a_id" binding:"required"`
				BID        string `json:"b_id" binding:"required"`
				SurvivorID string `json:"survivor_id" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			moved, err := operator.MergeEntities(c.Request.Context(), req.AID, req.BID, req.SurvivorID)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"survivor_id": req.SurvivorID, "edges_moved": moved})
		})

		api.DELETE("/maintenance/orphans", func(c *gin.Context) {
			variant := graph.NodeVariant(c.Query("variant"))
			removed, err := operator.RemoveOrphans(c.Request.Context(), variant)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"removed": removed})
		})

		api.POST("/sessions/:id/messages", func(c *gin.Context) {
			var req struct {
				UserID  string `json:"user_id" binding:"required"`
				Role    string `json:"role" binding:"required"`
				Content string `json:"content" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			sessionID := c.Param("id")
			if err := repo.EnsureSession(c.Request.Context(), req.UserID, sessionID); err != nil {
				respondError(c, log, err)
				return
			}
			msgID, err := repo.AppendMessage(c.Request.Context(), sessionID, req.Role, req.Content)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusCreated, gin.H{"id": msgID})
		})

		api.GET("/sessions/:id/messages", func(c *gin.Context) {
			limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
			messages, err := repo.SessionMessages(c.Request.Context(), c.Param("id"), limit)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"messages": messages})
		})

		api.POST("/maintenance/sessions/:id/trim", func(c *gin.Context) {
			var req struct {
				Keep int `json:"keep"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			deleted, err := operator.TrimSession(c.Request.Context(), c.Param("id"), req.Keep)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"deleted": deleted})
		})

		api.POST("/maintenance/consolidate", func(c *gin.Context) {
			var req struct {
				UserID  string `json:"user_id" binding:"required"`
				Keyword string `json:"keyword" binding:"required"`
				Summary string `json:"summary" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			summaryID, consolidated, err := operator.ConsolidateByTopic(c.Request.Context(), req.UserID, req.Keyword, req.Summary)
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"summary_id": summaryID, "consolidated": consolidated})
		})

		api.GET("/stats", func(c *gin.Context) {
			if stats, ok := operator.CachedSnapshot(); ok && c.Query("refresh") != "true" {
				c.JSON(http.StatusOK, stats)
				return
			}
			stats, err := operator.Snapshot(c.Request.Context())
			if err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, stats)
		})

		api.POST("/jobs/:name/trigger", func(c *gin.Context) {
			if err := sched.Trigger(c.Request.Context(), c.Param("name")); err != nil {
				respondError(c, log, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"triggered": c.Param("name")})
		})
	}

	sched.Start()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// respondError maps the error taxonomy onto HTTP statuses
func respondError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperrors.IsInvalidArgument(err) || apperrors.IsConstraintViolation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperrors.IsErrorType(err, apperrors.ErrorTypeUpstreamUnavailable):
		log.Warn("Upstream unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream unavailable"})
	default:
		log.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseDate parses an optional RFC3339 date parameter. On a malformed value
// it writes the 400 response and reports failure.
func parseDate(c *gin.Context, value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid date %q, want RFC3339", value)})
		return nil, false
	}
	return &t, true
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
