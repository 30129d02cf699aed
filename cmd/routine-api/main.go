package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/campusops/routine-api/internal/handler"
	"github.com/campusops/routine-api/internal/middleware"
	"github.com/campusops/routine-api/internal/repository"
	"github.com/campusops/routine-api/internal/service"
	"github.com/campusops/routine-api/pkg/cache"
	"github.com/campusops/routine-api/pkg/config"
	"github.com/campusops/routine-api/pkg/database"
	"github.com/campusops/routine-api/pkg/logger"
	corsmiddleware "github.com/campusops/routine-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusops/routine-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	semesterRepo := repository.NewSemesterRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	componentRepo := repository.NewComponentRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	routineRepo := repository.NewRoutineRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	catalogSvc := service.NewCatalogService(semesterRepo, roomRepo, componentRepo, settingsRepo, cacheRepo, db, validate, logr)
	routineSvc := service.NewRoutineService(catalogSvc, routineRepo, cacheRepo, metricsSvc, db, validate, logr, service.RoutineConfig{
		NodeBudget:    cfg.Solver.NodeBudget,
		Timeout:       cfg.Solver.Timeout,
		MinGapMinutes: cfg.Solver.MinGapMinutes,
		ProposalTTL:   cfg.Routines.ProposalTTL,
		CacheTTL:      cfg.Routines.CacheTTL,
	})
	exportSvc := service.NewExportService(routineSvc, nil, nil, logr)

	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	routineHandler := handler.NewRoutineHandler(routineSvc, exportSvc)
	verifier := middleware.NewTokenVerifier(cfg.Auth.Secret)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Metrics.Enabled {
		r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	}

	api := r.Group(cfg.APIPrefix)
	auth := middleware.JWT(verifier)

	api.GET("/semesters", catalogHandler.ListSemesters)
	api.POST("/semesters", auth, catalogHandler.CreateSemester)
	api.DELETE("/semesters/:id", auth, catalogHandler.DeleteSemester)
	api.DELETE("/semesters/:id/sections/:section", auth, catalogHandler.RemoveSection)

	api.GET("/rooms", catalogHandler.ListRooms)
	api.POST("/rooms", auth, catalogHandler.CreateRoom)
	api.DELETE("/rooms/:id", auth, catalogHandler.DeleteRoom)

	api.GET("/components", catalogHandler.ListComponents)
	api.GET("/components/:id", catalogHandler.GetComponent)
	api.POST("/components", auth, catalogHandler.CreateComponent)
	api.PATCH("/components/:id", auth, catalogHandler.UpdateComponent)
	api.DELETE("/components/:id", auth, catalogHandler.DeleteComponent)

	api.GET("/calendar", catalogHandler.GetCalendar)
	api.PUT("/calendar", auth, catalogHandler.UpdateCalendar)

	api.POST("/catalog/import", auth, catalogHandler.ImportCatalog)

	api.POST("/routines/generate", auth, routineHandler.Generate)
	api.POST("/routines/save", auth, routineHandler.Save)
	api.GET("/routines", routineHandler.List)
	api.GET("/routines/:id", routineHandler.Get)
	api.GET("/routines/:id/rows", routineHandler.Rows)
	api.GET("/routines/:id/grid", routineHandler.Grid)
	api.GET("/routines/:id/export", routineHandler.Export)
	api.DELETE("/routines/:id", auth, routineHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
