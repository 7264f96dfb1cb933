package main

import (
	"log"
	"os"
	"strings"

	_ "taxops/api/swagger" // swagger docs
	"taxops/internal/database"
	"taxops/internal/handler"
	"taxops/internal/middleware"
	"taxops/internal/repository"
	"taxops/internal/service"
	"taxops/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Rulebook Task Engine API
// @version         1.0
// @description     Rule-driven compliance task generation for accounting offices.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "postgres"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	tenantRepo := repository.NewTenantRepository(db)
	clientRepo := repository.NewClientRepository(db)
	versionRepo := repository.NewRulebookVersionRepository(db)
	ruleRepo := repository.NewRulebookRuleRepository(db)
	overrideRepo := repository.NewRuleOverrideRepository(db)
	generationRepo := repository.NewTaskGenerationRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	txManager := repository.NewTransactionManager(db)

	// Tenant codes scheduled runs target when the trigger names none.
	var defaultTenants []string
	if v := os.Getenv("DEFAULT_TENANTS"); v != "" {
		for _, code := range strings.Split(v, ",") {
			if code = strings.TrimSpace(code); code != "" {
				defaultTenants = append(defaultTenants, code)
			}
		}
	}

	rulebookService := service.NewRulebookService(versionRepo, ruleRepo, auditRepo, txManager)
	clientService := service.NewClientService(clientRepo, ruleRepo, overrideRepo, auditRepo)
	generationService := service.NewGenerationService(service.GenerationDeps{
		Tenants:     tenantRepo,
		Versions:    versionRepo,
		Rules:       ruleRepo,
		Clients:     clientRepo,
		Overrides:   overrideRepo,
		Generations: generationRepo,
		Tasks:       taskRepo,
		Audits:      auditRepo,
		Tx:          txManager,
		Hub:         wsHub,
	}, defaultTenants)

	// Initialize Handlers
	rulebookHandler := handler.NewRulebookHandler(rulebookService)
	clientHandler := handler.NewClientHandler(clientService)
	generationHandler := handler.NewGenerationHandler(generationService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Internal-Secret"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	rulebookHandler.RegisterRoutes(router.Group(""))
	clientHandler.RegisterRoutes(router.Group(""))
	generationHandler.RegisterRoutes(router.Group(""))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
