package approuters

import (
	"Arcana/internal/configuration"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// StartServer connects the chat core, serves the local monitor API and
// blocks until a shutdown signal or a fatal server error.
func StartServer(container *configuration.Container) {
	logger := container.Logger.Sugar()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := container.Manager.Connect(ctx); err != nil {
		logger.Warnf("initial connect failed: %v", err)
	}
	cancel()

	monitorServer := createMonitorServer(container)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infof("Monitor server starting at http://localhost:%d", container.Config.Server.MonitorPort)
		if err := monitorServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("monitor server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Errorf("Server error: %v", err)
	case sig := <-quit:
		logger.Infof("Received signal: %v. Initiating graceful shutdown...", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Closing chat connection...")
	container.Manager.Close()

	logger.Info("Shutting down monitor server...")
	if err := monitorServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Monitor server shutdown error: %v", err)
	}

	logger.Info("Graceful shutdown complete")
}

func createMonitorServer(container *configuration.Container) *http.Server {
	router := gin.Default()

	// The monitor surface is loopback tooling; keep CORS permissive for
	// local dashboards only.
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:4200"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Arcana chat core monitor",
		})
	})

	MonitorRouters(router, container)

	return &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", container.Config.Server.MonitorPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
