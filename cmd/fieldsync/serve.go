package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/fieldsync/api/swagger"
	"github.com/noah-isme/fieldsync/internal/handler"
	"github.com/noah-isme/fieldsync/internal/middleware"
	"github.com/noah-isme/fieldsync/pkg/config"
	"github.com/noah-isme/fieldsync/pkg/logger"
	corsmiddleware "github.com/noah-isme/fieldsync/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/fieldsync/pkg/middleware/requestid"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent API with the background sync worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := mustApp(ctx)
			defer a.close()

			if err := a.syncSvc.RecoverInFlight(ctx); err != nil {
				return fmt.Errorf("recover in-flight mutations: %w", err)
			}

			a.queue.Start(ctx)
			defer a.queue.Stop()
			if a.cfg.Sync.Enabled {
				a.syncSvc.Start(ctx)
				defer a.syncSvc.Stop()
			}

			router := newRouter(a)
			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", a.cfg.Port),
				Handler: router,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Sugar().Infow("server starting", "addr", server.Addr, "env", a.cfg.Env)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown server: %w", err)
			}
			a.logger.Sugar().Infow("server stopped")
			return nil
		},
	}
}

func newRouter(a *app) *gin.Engine {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(corsmiddleware.New(a.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))

	metricsHandler := handler.NewMetricsHandler(a.metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if a.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(a.cfg.APIPrefix)

	mutationHandler := handler.NewMutationHandler(a.mutationSvc)
	api.POST("/mutations", mutationHandler.Enqueue)
	api.GET("/mutations", mutationHandler.List)
	api.GET("/mutations/:id", mutationHandler.Get)
	api.POST("/mutations/:id/retry", mutationHandler.Retry)
	api.DELETE("/mutations/:id", mutationHandler.Discard)

	syncHandler := handler.NewSyncHandler(a.syncSvc, a.mutationSvc, a.metrics)
	api.GET("/sync/status", syncHandler.Status)
	api.POST("/sync/run", syncHandler.Run)

	surveyHandler := handler.NewSurveyHandler(a.surveySvc)
	api.POST("/surveys/import", surveyHandler.Import)
	api.GET("/surveys/:id", surveyHandler.Get)

	return r
}
