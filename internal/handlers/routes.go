package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"real-estate-cms/internal/ratelimit"
)

// NewEngine creates a bare engine whose ClientIP honors forwarding headers
// only from trustedProxies. With none, the socket peer address is used.
func NewEngine(trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	return r, nil
}

// RegisterRoutes mounts every endpoint on r. limiter may be nil.
func RegisterRoutes(r *gin.Engine, listings *ListingHandler, admin *AdminHandler, limiter *ratelimit.RateLimiter) {
	r.GET("/health", healthCheck)

	public := r.Group("/api")
	if limiter != nil {
		public.Use(RateLimit(limiter))
	}
	{
		public.GET("/listings", listings.ListPublic)
		public.GET("/listings/:id", listings.GetPublic)
		public.GET("/search", listings.Search)
	}

	// Admin API routes (requires authentication in production)
	adm := r.Group("/api/admin")
	{
		adm.GET("/listings", listings.ListAdmin)
		adm.POST("/listings", listings.Create)
		adm.POST("/listings/delete", listings.BulkSoftDelete)
		adm.GET("/listings/:id/print", listings.Print)
		adm.PATCH("/listings/:id/visibility", listings.ToggleVisibility)
		adm.PATCH("/listings/:id/address-visibility", listings.UpdateAddressVisibility)
		adm.POST("/listings/:id/confirm", listings.Confirm)
		adm.POST("/listings/:id/restore", listings.Restore)
		adm.DELETE("/listings/:id", listings.SoftDelete)
		adm.DELETE("/listings/:id/permanent", listings.HardDelete)

		adm.GET("/stats", admin.GetStats)
		adm.POST("/cleanup/run", admin.RunCleanup)
		adm.GET("/cleanup/logs", admin.GetDeleteLogs)
		adm.POST("/search/reindex", admin.Reindex)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}
