package main

import (
	"fmt"
	"log"
	"net/http"

	"townsquare/backend/internal/auth"
	"townsquare/backend/internal/config"
	"townsquare/backend/internal/database"
	"townsquare/backend/internal/handler"
	"townsquare/backend/internal/hub"
	"townsquare/backend/internal/identity"
	"townsquare/backend/internal/neighbor"
	"townsquare/backend/internal/presence"
	"townsquare/backend/internal/session"
	"townsquare/backend/internal/town"
	"townsquare/backend/internal/video"

	"github.com/gin-gonic/gin"

	// Swagger imports
	_ "townsquare/backend/docs" // This is important for swag to find the generated docs

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func init() {
	config.LoadConfig()
}

// @title           TownSquare API
// @version         1.0
// @description     This is the API for the TownSquare service.
// @host            localhost:8080
// @BasePath        /api/v1
// @securityDefinitions.apiKey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.AppConfig

	// Connect to the database
	database.Connect(cfg.DatabaseURL)

	// Core registries and collaborators
	ids := identity.NewGormStore(database.DB)
	registry := town.NewRegistry(cfg.TownCapacity)
	graph := neighbor.NewGraph()
	idx := presence.NewIndex()
	events := hub.NewHub()
	issuer := video.NewTwilioVideo(cfg.TwilioAccountSID, cfg.TwilioAPIKeySID, cfg.TwilioAPIKeySecret)
	sessions := session.NewManager(registry, issuer, idx, events, cfg.VideoMintTimeout)

	userHandler := handler.NewUserHandler(ids, graph)
	townHandler := handler.NewTownHandler(registry, sessions, ids, events)
	neighborHandler := handler.NewNeighborHandler(graph, ids, idx)

	router := gin.Default()

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/signup", userHandler.Signup)
			authRoutes.POST("/login", userHandler.Login)
		}

		// User routes (protected)
		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.AuthMiddleware())
		{
			userRoutes.GET("", userHandler.SearchUsers)

			// Neighbor request actions
			userRoutes.POST("/:id/request", neighborHandler.SendRequest)
			userRoutes.POST("/:id/accept", neighborHandler.AcceptRequest)
			userRoutes.POST("/:id/reject", neighborHandler.RejectRequest)
			userRoutes.POST("/:id/remove", neighborHandler.RemoveNeighbor)
		}

		// Neighbor listing routes (protected)
		neighborRoutes := apiV1.Group("/neighbors")
		neighborRoutes.Use(auth.AuthMiddleware())
		{
			neighborRoutes.GET("", neighborHandler.ListNeighbors)
			neighborRoutes.GET("/requests/received", neighborHandler.ListReceivedRequests)
			neighborRoutes.GET("/requests/sent", neighborHandler.ListSentRequests)
		}

		// The public town listing backs the pre-login town picker
		apiV1.GET("/towns", auth.OptionalAuthMiddleware(), townHandler.ListTowns)

		// Town routes (protected)
		townRoutes := apiV1.Group("/towns")
		townRoutes.Use(auth.AuthMiddleware())
		{
			townRoutes.POST("", townHandler.CreateTown)
			townRoutes.PATCH("/:id", townHandler.UpdateTown)
			townRoutes.DELETE("/:id/:password", townHandler.DeleteTown)
			townRoutes.POST("/:id/join", townHandler.JoinTown)
			townRoutes.POST("/leave", townHandler.LeaveTown) // Session ID comes from the body
			townRoutes.GET("/:id/events", townHandler.StreamEvents)
		}
	}

	fmt.Println("Server is running on :8080")
	fmt.Println("Swagger UI is available at http://localhost:8080/swagger/index.html")
	log.Fatal(router.Run(":8080"))
}
