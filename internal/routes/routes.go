package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pocket-ledger/pocket_ledger/internal/bank"
	"github.com/pocket-ledger/pocket_ledger/internal/config"
	"github.com/pocket-ledger/pocket_ledger/internal/ledger"
	"github.com/pocket-ledger/pocket_ledger/internal/middleware"
	"github.com/pocket-ledger/pocket_ledger/internal/notification"
	"github.com/pocket-ledger/pocket_ledger/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewInMemory()
	}

	var gateway bank.Gateway
	if d.Cfg.BankAPIURL != "" {
		gateway = bank.NewHTTPGateway(d.Cfg.BankAPIURL, d.Cfg.BankTimeout, d.Logger)
	} else {
		gateway = bank.StaticGateway{}
	}

	var cache *wallet.BalanceCache
	if d.Cache != nil {
		cache = wallet.NewBalanceCache(d.Cache, d.Cfg.BalanceCacheTTL)
	}

	notifier := notification.NewLoggerNotifier(d.Logger)
	walletSvc := wallet.NewService(store, gateway, cache, notifier, d.Logger)
	walletHandler := wallet.NewHandler(walletSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, walletHandler)

	return nil
}
