package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/abelsonz/rideunited/internal/admin"
	"github.com/abelsonz/rideunited/internal/auth"
	"github.com/abelsonz/rideunited/internal/chat"
	"github.com/abelsonz/rideunited/internal/config"
	"github.com/abelsonz/rideunited/internal/contact"
	"github.com/abelsonz/rideunited/internal/kv"
	"github.com/abelsonz/rideunited/internal/route"
	"github.com/abelsonz/rideunited/internal/storage"
)

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Objects storage.ObjectStore
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, objects storage.ObjectStore) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:     app,
		Cfg:     cfg,
		DB:      db,
		Redis:   redisClient,
		Objects: objects,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	store := kv.New(s.Redis)
	authSvc := auth.NewService(s.Cfg.JWTSecret, s.DB)
	adminSvc := admin.NewService(store, authSvc, s.Cfg.AdminPassword, s.Cfg.AdminEmailList())
	routeSvc := route.NewService(store, s.Objects)

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	adminMiddleware := admin.Middleware(adminSvc)
	isAdmin := admin.Check(adminSvc)

	auth.RegisterRoutes(s.App.Group("/auth"), authSvc)
	s.App.Post("/signup", auth.SignupHandler(authSvc))
	auth.RegisterAccountRoutes(s.App, authSvc, routeSvc, jwtMiddleware)

	route.RegisterRoutes(s.App.Group("/routes"), routeSvc, isAdmin)
	route.RegisterAdminRoutes(s.App.Group("/admin/routes"), routeSvc, adminMiddleware)

	admin.RegisterRoutes(s.App.Group("/admin"), adminSvc)

	chat.RegisterRoutes(s.App.Group("/chat"), chat.NewService(store), authSvc, isAdmin)

	contactSvc := contact.NewService(store)
	contact.RegisterRoutes(s.App.Group("/contact"), contactSvc)
	contact.RegisterAdminRoutes(s.App.Group("/admin/contact"), contactSvc, adminMiddleware)
}
