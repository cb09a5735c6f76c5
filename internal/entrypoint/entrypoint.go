package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dipgate/internal/config"
)

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts down
// within the configured timeout. onShutdown runs before the listener is
// closed.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown func(ctx context.Context)) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	log.Println("Server exiting")
}

// Run builds the application from cfg and serves it.
func Run(cfg *config.Config, version string) error {
	log.Printf("Starting dipgate v%s", version)

	app, err := Build(cfg, version)
	if err != nil {
		return err
	}

	printBanner(cfg, app.Mode, app.GeneratedSecret)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		app.Close()
		return err
	}

	Serve(app.Router, cfg, func(ctx context.Context) {
		app.Shutdown(ctx)
		cancel()
	})
	app.Close()
	return nil
}
