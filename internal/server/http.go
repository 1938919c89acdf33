package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ramakeerthi/file-vault-backend/internal/conf"
	"github.com/ramakeerthi/file-vault-backend/internal/pkg/logger"
	"github.com/ramakeerthi/file-vault-backend/internal/vault/service"
	"go.uber.org/zap"
)

// HTTPServer HTTP 服务
type HTTPServer struct {
	server      *http.Server
	logger      *logger.Logger
	fileService *service.FileService
}

// NewHTTPServer 创建 HTTP 服务
func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	fileService *service.FileService,
) *HTTPServer {
	gin.SetMode(config.Server.Mode)

	router := gin.New()
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLogger(log))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	// API routes
	api := router.Group("/api/v1")
	fileService.RegisterRoutes(api)

	return &HTTPServer{
		server: &http.Server{
			Addr:         config.Server.Addr(),
			Handler:      router,
			ReadTimeout:  config.Server.ReadTimeout,
			WriteTimeout: config.Server.WriteTimeout,
		},
		logger:      log,
		fileService: fileService,
	}
}

// Start 启动服务，阻塞直到关闭
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Stop 优雅关闭
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}
