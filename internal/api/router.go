package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"spacebooking-backend/config"
	"spacebooking-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig, log *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(log))

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Read answers are cached briefly; writes drop the scopes they make stale.
	responses := mw.NewResponseCache(time.Duration(cfg.CacheTTLSeconds) * time.Second)
	const (
		scopeResources = "resources"
		scopeTimeline  = "timeline"
	)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst))
	{
		api.GET("/resources", responses.Cache(scopeResources), h.ListResources)
		api.GET("/resources/:id", responses.Cache(scopeResources), h.GetResource)
		api.DELETE("/resources/:id", responses.Invalidate(scopeResources, scopeTimeline), h.RetireResource)
		api.GET("/resources/:id/availability", responses.Cache(scopeTimeline), h.GetAvailability)
		api.GET("/resources/:id/slots", responses.Cache(scopeTimeline), h.GetSlots)
		api.GET("/resources/:id/price", responses.Cache(scopeTimeline), h.GetPrice)

		// Any booking write can change availability, slots and credit-aware prices.
		bookings := api.Group("/bookings", responses.Invalidate(scopeTimeline))
		bookings.POST("", h.CreateBooking)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/confirm", h.transitionHandler(h.Bookings.Confirm))
		bookings.POST("/:id/reject", h.RejectBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/check-in", h.transitionHandler(h.Bookings.CheckIn))
		bookings.POST("/:id/check-out", h.transitionHandler(h.Bookings.CheckOut))
		bookings.POST("/:id/complete", h.transitionHandler(h.Bookings.Complete))
		bookings.POST("/:id/no-show", h.transitionHandler(h.Bookings.MarkNoShow))

		api.GET("/members/:id/credits", h.GetMemberCredits)
	}

	return r
}
