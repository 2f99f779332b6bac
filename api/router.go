package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the endpoints. No gin.Logger or gin.Recovery: both print
// raw query strings, which may hold a mnemonic.
func NewRouter(uploadHandler *UploadHandler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(logger), AccessLog(logger))

	r.GET("/healthz", Health)

	// 上传并 pin 文件 ?stake=true 按质押余额判断
	ipfs := r.Group("/ipfs")
	ipfs.POST("/upload_and_pin", uploadHandler.UploadAndPin)

	return r
}
