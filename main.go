package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "competition-ledger-system/config"
	"competition-ledger-system/handlers"
	"competition-ledger-system/middleware"
	"competition-ledger-system/models"
	"competition-ledger-system/services"
	"competition-ledger-system/utils"
	"competition-ledger-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment variables directly")
	}

	cfg, err := appconfig.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	dsn := cfg.Database.DSN
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		log.Fatal("database DSN not set (config database.dsn or DATABASE_URL)")
	}

	// TranslateError turns driver unique violations into
	// gorm.ErrDuplicatedKey, which the services map onto conflict results.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.LedgerTransaction{},
		&models.RatingTransaction{},
		&models.Event{},
		&models.Session{},
		&models.Enrollment{},
		&models.Booking{},
		&models.Attendance{},
		&models.Participation{},
		&models.Badge{},
		&models.SkillProfile{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	ledgerService := services.NewLedgerService(db)
	bookingService := services.NewBookingService(db)
	enrollmentService := services.NewEnrollmentService(db, cfg, ledgerService, bookingService)
	skillService := services.NewSkillService(db, cfg)
	outcomeService := services.NewOutcomeService(db, cfg, ledgerService, skillService)
	eventService := services.NewEventService(db)
	auditService := services.NewAuditService(db, cfg)

	app := fiber.New(fiber.Config{})
	app.Use(middleware.GatewayAuthMiddleware())
	app.Use(cors.New())

	handlers.SetupEventRoutes(app, eventService, enrollmentService)
	handlers.SetupBookingRoutes(app, bookingService)
	handlers.SetupRewardRoutes(app, outcomeService, ledgerService, skillService)
	handlers.SetupAdminRoutes(app, auditService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rewardWorker := workers.NewRewardWorker(db, outcomeService)
	go rewardWorker.Poll(ctx, 30*time.Second)

	eventService.StartCompletionScheduler()
	auditService.StartAuditScheduler()

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Printf("server error: %v", err)
		}
	}()

	log.Printf("server running on :%s", cfg.Server.Port)
	log.Println("reward worker polling every 30s")
	log.Println("completion scheduler and invariant auditor running")

	<-ctx.Done()
	log.Println("shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
