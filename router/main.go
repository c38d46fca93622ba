package router

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-platform-api/config"
	"github.com/sahilchouksey/course-platform-api/database"
	"github.com/sahilchouksey/course-platform-api/handlers"
	auth_handlers "github.com/sahilchouksey/course-platform-api/handlers/auth"
	course_handlers "github.com/sahilchouksey/course-platform-api/handlers/course"
	payment_handlers "github.com/sahilchouksey/course-platform-api/handlers/payment"
	subscription_handlers "github.com/sahilchouksey/course-platform-api/handlers/subscription"
	user_handlers "github.com/sahilchouksey/course-platform-api/handlers/user"
	"github.com/sahilchouksey/course-platform-api/services"
	"github.com/sahilchouksey/course-platform-api/services/payment"
	"github.com/sahilchouksey/course-platform-api/services/storage"
	"github.com/sahilchouksey/course-platform-api/services/subscription"
	"github.com/sahilchouksey/course-platform-api/utils/auth"
	"github.com/sahilchouksey/course-platform-api/utils/cache"
	"github.com/sahilchouksey/course-platform-api/utils/middleware"
)

// Dependencies holds the long lived clients the routes were built with
type Dependencies struct {
	Cache         *cache.RedisCache
	Payments      *payment.Service
	Subscriptions *subscription.Service
	publisher     *payment.KafkaPublisher
	logger        *slog.Logger
}

// Close waits for pending notifications and releases external clients
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.Subscriptions != nil {
		d.Subscriptions.Wait()
	}
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			d.logger.Warn("failed to close kafka producer", "error", err)
		}
	}
	if d.Cache != nil {
		d.Cache.Close()
	}
}

func SetupRoutes(app *fiber.App, store database.Storage, env *config.EnviornmentVariable, log *slog.Logger) (*Dependencies, error) {
	if env.JWT_SECRET == "" {
		return nil, errors.New("JWT_SECRET environment variable is not set")
	}

	// Initialize JWT manager with config
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        env.JWT_SECRET,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        env.JWT_ISSUER,
	})

	db := store.GetDB()
	deps := &Dependencies{logger: log}

	// Redis backs brute force protection and the product registration lock
	if env.REDIS_URL != "" {
		redisCache, err := cache.NewRedisCache(env.REDIS_URL)
		if err != nil {
			log.Warn("failed to connect to Redis, brute force protection disabled", "error", err)
		} else {
			deps.Cache = redisCache
		}
	}
	bruteForceProtection := middleware.NewBruteForceProtection(deps.Cache)

	// Payment events
	var events payment.EventPublisher = payment.NopPublisher{}
	if len(env.KAFKA_BROKERS) > 0 {
		publisher, err := payment.NewKafkaPublisher(env.KAFKA_BROKERS, env.KAFKA_PAYMENT_TOPIC)
		if err != nil {
			log.Warn("failed to connect to Kafka, payment events disabled", "error", err)
		} else {
			deps.publisher = publisher
			events = publisher
		}
	}

	// Payment gateway and service
	catalog := payment.NewCatalog(db)
	var locks payment.Locker
	if deps.Cache != nil {
		locks = deps.Cache
	}
	gateway := payment.NewStripeGateway(payment.StripeConfig{
		APIKey:     env.STRIPE_API_KEY,
		SuccessURL: env.BASE_URL,
		Currency:   env.STRIPE_CURRENCY,
		Timeout:    env.GATEWAY_TIMEOUT,
	}, catalog, locks, log)
	if env.STRIPE_API_KEY == "" {
		log.Warn("STRIPE_API_KEY is not set, transfer checkouts will fail")
	}
	deps.Payments = payment.NewService(db, catalog, gateway, events, log)

	// Email and subscriptions
	emailService := services.NewEmailService(env.BASE_URL, log)
	if !emailService.IsConfigured() {
		log.Warn("SMTP is not configured, emails will be skipped")
	}
	deps.Subscriptions = subscription.NewService(db, emailService, log)

	// Preview storage is optional
	var previews course_handlers.PreviewUploader
	spacesConfig := storage.SpacesConfig{
		AccessKey: env.DO_SPACES_KEY,
		SecretKey: env.DO_SPACES_SECRET,
		Bucket:    env.DO_SPACES_BUCKET,
		Region:    env.DO_SPACES_REGION,
		Endpoint:  env.DO_SPACES_ENDPOINT,
		CDNURL:    env.DO_SPACES_CDN_URL,
	}
	if spacesConfig.Configured() {
		spaces, err := storage.NewSpacesClient(spacesConfig)
		if err != nil {
			log.Warn("failed to initialize Spaces client, preview uploads disabled", "error", err)
		} else {
			previews = spaces
		}
	}

	// Initialize auth middleware with DB for blacklist checking
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection, emailService, log)
	userHandler := user_handlers.NewUserHandler(db, deps.Payments)
	courseHandler := course_handlers.NewCourseHandler(db, deps.Subscriptions, previews, log)
	subscriptionHandler := subscription_handlers.NewSubscriptionHandler(deps.Subscriptions)
	paymentHandler := payment_handlers.NewPaymentHandler(deps.Payments)

	var cachePinger handlers.Pinger
	if deps.Cache != nil {
		cachePinger = deps.Cache
	}
	healthHandler := handlers.NewHealthHandler(db, cachePinger, deps.Payments)

	// Apply security middleware
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", healthHandler.HandlePing)

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Get("/verify/:token", authHandler.Verify)
	authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	authGroup.Post("/refresh", authHandler.RefreshToken)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/logout-all", authMiddleware.Required(), authHandler.LogoutAll)
	authGroup.Get("/me", authMiddleware.Required(), authHandler.GetProfile)

	// Users routes
	users := api.Group("/users", authMiddleware.Required())
	users.Get("/:id", userHandler.GetUser)
	users.Put("/:id", userHandler.UpdateUser)
	users.Delete("/:id", userHandler.DeleteUser)

	// Courses routes
	courses := api.Group("/courses", authMiddleware.Required())
	courses.Get("/", courseHandler.ListCourses)
	courses.Post("/", courseHandler.CreateCourse)
	courses.Get("/:id", courseHandler.GetCourse)
	courses.Put("/:id", courseHandler.UpdateCourse)
	courses.Delete("/:id", courseHandler.DeleteCourse)
	courses.Post("/:id/preview", courseHandler.UploadCoursePreview)

	// Lessons routes
	lessons := api.Group("/lessons", authMiddleware.Required())
	lessons.Get("/", courseHandler.ListLessons)
	lessons.Post("/", courseHandler.CreateLesson)
	lessons.Get("/:id", courseHandler.GetLesson)
	lessons.Put("/:id", courseHandler.UpdateLesson)
	lessons.Delete("/:id", courseHandler.DeleteLesson)
	lessons.Post("/:id/preview", courseHandler.UploadLessonPreview)

	// Subscriptions routes
	api.Post("/subscriptions/:course_id", authMiddleware.Required(), subscriptionHandler.Toggle)

	// Payments routes
	payments := api.Group("/payments", authMiddleware.Required())
	payments.Get("/", paymentHandler.ListPayments)
	payments.Post("/", paymentHandler.CreatePayment)
	payments.Get("/:id", paymentHandler.GetPayment)

	// Legacy payment paths
	legacy := app.Group("/payment", authMiddleware.Required())
	legacy.Get("/", paymentHandler.ListPayments)
	legacy.Post("/create/", paymentHandler.CreatePayment)
	legacy.Get("/:id/", paymentHandler.GetPayment)

	// Admin routes
	admin := api.Group("/admin", authMiddleware.Required(), authMiddleware.RequireModerator())
	admin.Get("/health", healthHandler.HandleHealth)

	return deps, nil
}
