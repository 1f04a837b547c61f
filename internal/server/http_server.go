package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rishtahq/rishta-engine/internal/config"
)

// NewRouter builds the gin engine and registers all provided services.
func NewRouter(cfg *config.Config, registrars ...Registrar) *gin.Engine {
	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	for _, r := range registrars {
		r.Register(router)
	}

	return router
}

// StartHTTPServer boots the HTTP server. The returned shutdown func
// drains in-flight requests before returning.
func StartHTTPServer(cfg *config.Config, router *gin.Engine) (*http.Server, func(context.Context) error) {
	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, srv.Shutdown
}
