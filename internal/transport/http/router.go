package http

import (
	"errors"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sakib404-hub/zap-shit-server/internal/domain"
	"github.com/sakib404-hub/zap-shit-server/internal/identity"
	"github.com/sakib404-hub/zap-shit-server/internal/service"
	"github.com/sakib404-hub/zap-shit-server/internal/transport/http/handler"
	"github.com/sakib404-hub/zap-shit-server/internal/transport/http/middleware"
	"github.com/sakib404-hub/zap-shit-server/pkg/config"
	"go.uber.org/zap"
)

const rootGreeting = "Zap is Shifting shifting!"

type Handlers struct {
	User    *handler.UserHandler
	Parcel  *handler.ParcelHandler
	Payment *handler.PaymentHandler
	Rider   *handler.RiderHandler
}

// Auth carries what the route middleware needs to authenticate callers.
type Auth struct {
	Verifier identity.Verifier
	Guard    *service.RoleGuard
}

// NewApp builds the fiber app with recovery, CORS, tracing and rate limiting.
func NewApp(cfg config.HTTP, limits config.Limiter) *fiber.App {
	// Params and query values end up as store keys, so they must not alias
	// fasthttp's reused request buffers.
	app := fiber.New(fiber.Config{
		Immutable:    true,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(otelfiber.Middleware())

	if limits.Max > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        limits.Max,
			Expiration: limits.Expiration,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Too many requests. Try again later.",
				})
			},
		}))
	}

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func RegisterRoutes(app *fiber.App, h *Handlers, auth Auth, logger *zap.Logger) {
	authenticated := middleware.NewAuthMiddleware(auth.Verifier, auth.Guard, logger)
	admin := middleware.NewRoleMiddleware(auth.Guard, logger, domain.RoleAdmin)
	rider := middleware.NewRoleMiddleware(auth.Guard, logger, domain.RoleRider)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(rootGreeting)
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	app.Post("/users", authenticated, h.User.Register)
	app.Get("/users", authenticated, admin, h.User.Search)
	app.Get("/users/:email/role", authenticated, h.User.GetRole)
	app.Patch("/users/:email/role", authenticated, admin, h.User.UpdateRole)

	app.Post("/parcels", authenticated, h.Parcel.Create)
	app.Get("/parcels", authenticated, h.Parcel.List)
	app.Get("/parcels/:id", authenticated, h.Parcel.GetByID)
	app.Delete("/parcels/:id", authenticated, h.Parcel.Delete)
	app.Patch("/parcels/:id/assign", authenticated, admin, h.Parcel.AssignRider)
	app.Patch("/parcels/:id/status", authenticated, rider, h.Parcel.UpdateDeliveryStatus)
	app.Get("/trackings/:trackingId", h.Parcel.Track)

	app.Post("/payment-checkout-session", authenticated, h.Payment.CreateCheckoutSession)
	app.Patch("/payment-success", h.Payment.PaymentSuccess)
	app.Get("/payments", authenticated, h.Payment.History)

	// Without a signing secret the webhook route is not exposed.
	if h.Payment != nil && h.Payment.AcceptsWebhooks() {
		app.Post("/webhooks/stripe", h.Payment.Webhook)
	}

	app.Post("/riders", authenticated, h.Rider.Apply)
	app.Get("/riders", authenticated, admin, h.Rider.List)
	app.Get("/riders/parcels", authenticated, rider, h.Parcel.ListAssigned)
	app.Patch("/riders/:id/status", authenticated, admin, h.Rider.UpdateStatus)
}
