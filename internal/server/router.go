package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ibeneme/kindred-app-sub000/internal/auth"
	"github.com/Ibeneme/kindred-app-sub000/internal/handler"
	"github.com/Ibeneme/kindred-app-sub000/internal/logger"
	"github.com/Ibeneme/kindred-app-sub000/internal/middleware"
	"github.com/Ibeneme/kindred-app-sub000/internal/socketio"
	"github.com/Ibeneme/kindred-app-sub000/internal/store"
)

// Collections served through the shared document CRUD.
var resourceCollections = []string{
	"news", "tasks", "polls", "reports", "suggestions", "donations", "notifications",
}

type Deps struct {
	Store       store.Store
	TokenConfig auth.TokenConfig
	Log         *logger.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	authHandler := &handler.AuthHandler{Store: deps.Store, TokenConfig: deps.TokenConfig, Log: log}

	authGroup := r.Group("/auth")
	authGroup.Use(middleware.RateLimit(authLimiter))
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/verify-otp", authHandler.VerifyOTP)
	authGroup.POST("/resend-otp", authHandler.ResendOTP)
	authGroup.POST("/forgot-password", authHandler.ForgotPassword)
	authGroup.POST("/reset-password", authHandler.ResetPassword)

	protected := r.Group("/")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))

	userHandler := &handler.UserHandler{Store: deps.Store}
	protected.GET("/users/me", userHandler.Me)
	protected.GET("/users", userHandler.Search)
	protected.GET("/users/:id", userHandler.Get)

	familyHandler := &handler.FamilyHandler{Store: deps.Store}
	protected.POST("/families", familyHandler.Create)
	protected.POST("/families/join", familyHandler.Join)
	protected.GET("/families", familyHandler.List)
	protected.GET("/families/:id/members", familyHandler.Members)

	for _, collection := range resourceCollections {
		h := &handler.ResourceHandler{Store: deps.Store, Collection: collection}
		group := protected.Group("/" + collection)
		group.GET("", h.List)
		group.POST("", h.Create)
		group.GET("/:id", h.Get)
		group.PUT("/:id", h.Update)
		group.DELETE("/:id", h.Delete)
	}

	socketServer := socketio.NewServer(socketio.Deps{
		Store:       deps.Store,
		TokenConfig: deps.TokenConfig,
		Log:         log,
	})
	r.GET("/socket.io/", gin.WrapH(socketServer))

	return r
}
