package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prekeynet/prekey-node/pkg/storage"
)

// AdminAPI exposes a read-only HTTP status surface for operators.
type AdminAPI struct {
	store      *storage.ServerStore
	router     *gin.Engine
	httpServer *http.Server
}

// NewAdminAPI builds the status API over the server store.
func NewAdminAPI(store *storage.ServerStore, addr string) *AdminAPI {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := &AdminAPI{
		store:  store,
		router: router,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}

	router.GET("/health", api.handleHealth)
	router.GET("/status", api.handleStatus)

	return api
}

// Start serves the API until Shutdown is called.
func (a *AdminAPI) Start() error {
	err := a.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the API gracefully.
func (a *AdminAPI) Shutdown(ctx context.Context) error {
	return a.httpServer.Shutdown(ctx)
}

func (a *AdminAPI) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *AdminAPI) handleStatus(c *gin.Context) {
	count, err := a.store.ClientCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"registered_clients": count,
	})
}
