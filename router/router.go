package router

import (
	"net/http"

	"FileVault/internal/handler"
	"FileVault/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	JWTSecret        string
	CORSAllowOrigins []string
}

// InitRouter builds API routes.
func InitRouter(h *handler.Handler, opts Options) *gin.Engine {
	r := gin.Default()
	r.Use(utils.CORSMiddleware(opts.CORSAllowOrigins))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/token", h.Login)
	r.POST("/users/new", h.Register)

	auth := r.Group("")
	auth.Use(utils.AuthMiddleware(opts.JWTSecret))
	{
		auth.POST("/file/upload", h.UploadFile)
		auth.GET("/file/original", h.GetOriginal)
		auth.GET("/file/:name/metadata", h.GetMetadata)
		auth.PATCH("/file/:name/tags", h.UpdateTags)
		auth.DELETE("/file/:name", h.DeleteFile)
		auth.GET("/files", h.ListFiles)
		auth.GET("/files/search", h.SearchFiles)
	}
	return r
}
