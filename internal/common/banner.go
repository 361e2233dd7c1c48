package common

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ternarybob/banner"
)

var bannerArt = []string{
	`  ___ _           _     ___ _            _    `,
	` / __| |_ ___  __| |__ / __| |_ __ _ ___| |_  `,
	` \__ \  _/ _ \/ _| / / \__ \  _/ _' (_-<| ' \ `,
	` |___/\__\___/\__|_\_\ |___/\__\__,_/__/|_||_|`,
}

// PrintBanner displays the application startup banner to stderr.
func PrintBanner(config *Config, logger *Logger) {
	printBanner(os.Stderr, config)

	logger.Info().
		Str("version", Version).
		Str("build", Build).
		Str("commit", GitCommit).
		Str("environment", config.Environment).
		Str("service_url", config.Server.BaseURL).
		Str("storage", storageLabel(config)).
		Msg("Application started")
}

func printBanner(w io.Writer, config *Config) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	hr := lineColor + strings.Repeat("═", 60) + banner.ColorReset

	fmt.Fprintf(w, "\n%s\n\n", hr)
	for _, line := range bannerArt {
		fmt.Fprintf(w, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s  Portfolios & Watchlists%s\n\n%s\n\n", textColor, banner.ColorReset, hr)

	rows := [][2]string{
		{"Version", GetFullVersion()},
		{"Environment", config.Environment},
		{"Listen", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)},
		{"Base URL", config.Server.BaseURL},
		{"Storage", storageLabel(config)},
		{"Market data", config.Clients.EODHD.BaseURL},
	}
	for _, kv := range rows {
		fmt.Fprintf(w, "%s  %-14s %s%s\n", textColor, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s\n\n", hr)
}

func storageLabel(config *Config) string {
	switch config.Storage.Driver {
	case DriverSurrealDB:
		return "surrealdb " + config.Storage.SurrealDB.Address
	default:
		return "sqlite " + config.Storage.SQLite.Path
	}
}

// PrintShutdownBanner displays the application shutdown banner to stderr.
func PrintShutdownBanner(logger *Logger) {
	textColor := banner.ColorBold + banner.ColorWhite
	hr := banner.ColorCyan + strings.Repeat("═", 42) + banner.ColorReset

	fmt.Fprintf(os.Stderr, "\n%s\n%s  STOCKSTASH - SHUTTING DOWN%s\n%s\n\n", hr, textColor, banner.ColorReset, hr)

	logger.Info().Msg("Application shutting down")
}
