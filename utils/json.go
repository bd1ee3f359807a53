package utils

import "github.com/gin-gonic/gin"

// Error writes {"error": msg}.
func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// AbortError writes {"error": msg} and stops the handler chain.
func AbortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
