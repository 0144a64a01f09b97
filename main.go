package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rami2212/digitex-backend/gateway"
	"github.com/rami2212/digitex-backend/models"
	"github.com/rami2212/digitex-backend/notify"
	"github.com/rami2212/digitex-backend/reconcile"
	"github.com/rami2212/digitex-backend/reservation"
	"github.com/rami2212/digitex-backend/routes"
	"github.com/rami2212/digitex-backend/store"
)

func main() {
	log.Println("Starting application...")

	// Load environment variables
	_ = godotenv.Load()

	// Init DB
	db := initDatabase()

	// Auto-migrate all tables
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Category{},
		&models.Admin{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.Banner{},
	); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	// Payment gateway client
	gw, err := gateway.NewClientFromEnv()
	if err != nil {
		log.Fatalf("Gateway setup failed: %v", err)
	}

	// Fulfillment notifications: kafka topic + live websocket feed
	hub := notify.NewHub()
	notifiers := notify.Multi{hub}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaNotifier := notify.NewKafkaNotifier(strings.Split(brokers, ","))
		defer kafkaNotifier.Close()
		notifiers = append(notifiers, kafkaNotifier)
	} else {
		log.Println("KAFKA_BROKERS not set, fulfillment events limited to websocket feed")
	}

	// Reconciliation engine over the order store
	orderStore := store.NewGormOrderStore(db)
	engine := reconcile.NewEngine(orderStore, gw, notifiers)

	// Gin setup
	r := gin.Default()

	// CORS settings
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Serve uploaded images
	uploadsDir := os.Getenv("UPLOAD_DIR")
	if uploadsDir == "" {
		uploadsDir = "/var/www/digitex/uploads"
	}
	r.Static("/uploads", uploadsDir)

	// Setup routes
	routes.SetupRoutes(r, db, orderStore, engine, gw, hub)

	// Release expired stock holds in the background
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go reservation.SweepLoop(sweepCtx, db, gw, 10*time.Minute)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on port %s...", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initDatabase sets up the GORM DB connection
func initDatabase() *gorm.DB {
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
		if err != nil {
			log.Fatalf("DB connection failed: %v", err)
		}
		return db
	}

	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host, user, password, dbname, port,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}
	return db
}
