// Package app wires configuration, storage, clients and services together.
// It is the shared core of cmd/stockstash-server and cmd/stockstash.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/stockstash/internal/clients/eodhd"
	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/forms"
	"github.com/bobmcallan/stockstash/internal/interfaces"
	"github.com/bobmcallan/stockstash/internal/mail"
	"github.com/bobmcallan/stockstash/internal/services/auth"
	"github.com/bobmcallan/stockstash/internal/services/directory"
	"github.com/bobmcallan/stockstash/internal/services/position"
	"github.com/bobmcallan/stockstash/internal/services/quote"
	"github.com/bobmcallan/stockstash/internal/storage"
)

// App holds all initialized services and clients.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Store       interfaces.UserStore
	MarketData  interfaces.MarketDataClient
	Mailer      interfaces.Mailer
	Auth        *auth.Service
	Directory   *directory.Service
	Quotes      *quote.Service
	Positions   *position.Service
	Forms       *forms.Validator
	StartupTime time.Time
}

// Option overrides a collaborator before the services are built.
type Option func(*options)

type options struct {
	store      interfaces.UserStore
	marketData interfaces.MarketDataClient
	mailer     interfaces.Mailer
}

// WithStore uses store instead of the configured storage driver.
func WithStore(store interfaces.UserStore) Option {
	return func(o *options) { o.store = store }
}

// WithMarketData uses client instead of the EODHD client.
func WithMarketData(client interfaces.MarketDataClient) Option {
	return func(o *options) { o.marketData = client }
}

// WithMailer uses m instead of the configured mail driver.
func WithMailer(m interfaces.Mailer) Option {
	return func(o *options) { o.mailer = m }
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the explicit path, then
// STOCKSTASH_CONFIG, then stockstash.toml next to the binary, then
// config/stockstash.toml for development.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("STOCKSTASH_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "stockstash.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/stockstash.toml"
		}
	}
	return configPath
}

// NewApp loads configuration and initializes everything.
// configPath may be empty, in which case ResolveConfigPath decides.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative SQLite path to binary directory
	if p := config.Storage.SQLite.Path; p != "" && !filepath.IsAbs(p) && config.Storage.Driver == common.DriverSQLite {
		config.Storage.SQLite.Path = filepath.Join(getBinaryDir(), p)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	if config.IsProduction() {
		if missing := config.ValidateRequired(); len(missing) > 0 {
			return nil, fmt.Errorf("missing required configuration: %v", missing)
		}
	}

	return NewAppFromConfig(ctx, config, logger)
}

// NewAppFromConfig initializes the application from an already loaded config.
func NewAppFromConfig(ctx context.Context, config *common.Config, logger *common.Logger, opts ...Option) (*App, error) {
	startupStart := time.Now()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		s, err := storage.NewUserStore(ctx, logger, config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		store = s
	}

	marketData := o.marketData
	if marketData == nil {
		eod := config.Clients.EODHD
		if eod.APIKey == "" {
			logger.Warn().Msg("EODHD API key not configured - quotes will be unavailable")
		}
		marketData = eodhd.NewClient(eod.APIKey,
			eodhd.WithBaseURL(eod.BaseURL),
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(eod.RateLimit),
			eodhd.WithTimeout(eod.GetTimeout()),
			eodhd.WithDefaultExchange(eod.DefaultExchange),
		)
	}

	mailer := o.mailer
	if mailer == nil {
		m, err := mail.NewMailer(config.Mail, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize mailer: %w", err)
		}
		mailer = m
	}

	authService := auth.NewService(store, config.Auth, logger)
	directoryService := directory.NewService(store, authService, logger)
	quoteService := quote.NewService(marketData, config.Market.GetHolidays(), logger)
	positionService := position.NewService(store, quoteService, config.Market.Currency, logger)

	a := &App{
		Config:      config,
		Logger:      logger,
		Store:       store,
		MarketData:  marketData,
		Mailer:      mailer,
		Auth:        authService,
		Directory:   directoryService,
		Quotes:      quoteService,
		Positions:   positionService,
		Forms:       forms.NewValidator(directoryService, quoteService),
		StartupTime: startupStart,
	}

	logger.Info().
		Str("storage", config.Storage.Driver).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Close releases the storage backend.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
