// Package server exposes BEARTANK over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/beartank/internal/review"
	"github.com/zulandar/beartank/internal/telegraph"
	"github.com/zulandar/beartank/internal/unlock"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB        *gorm.DB
	Port      int
	JWTSecret string
	Resolver  unlock.Resolver        // nil uses unlock.Default()
	Broadcast *telegraph.Broadcaster // optional
	Out       io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.JWTSecret == "" {
		return fmt.Errorf("server: jwt secret is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router := NewRouter(opts)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "BEARTANK API listening on http://localhost:%d/api\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts StartOpts) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.Out != nil {
		router.Use(gin.LoggerWithWriter(opts.Out))
	}

	svc := &review.Service{
		DB:        opts.DB,
		Resolver:  opts.Resolver,
		Broadcast: opts.Broadcast,
	}
	registerRoutes(router, opts.DB, svc, opts.JWTSecret)
	return router
}
