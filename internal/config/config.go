// FILE: config.go
// Package config – Runtime configuration model and loader.
//
// Typical flow (see cmd/footprintctl/main.go):
//   config.LoadEnvFile()
//   cfg := config.LoadFromEnv()
package config

import "github.com/chidi150c/footprint/internal/microalloc"

// Config holds the runtime knobs for the aggregation engine.
type Config struct {
	DataRoot  string
	Symbol    string
	VUnit     int64
	TickSize  float64
	BridgeURL string
	Port      int

	MicroAlpha float64
	MicroNMin  int
	MicroNMax  int

	ForceRecompute bool
}

// LoadFromEnv reads the process env (already hydrated by LoadEnvFile()) and
// returns a Config with sane defaults if keys are missing.
func LoadFromEnv() Config {
	return Config{
		DataRoot:       getEnv("FOOTPRINT_DATA_ROOT", getEnv("DATA_ROOT", "./footprint_data")),
		Symbol:         getEnv("FOOTPRINT_SYMBOL", "BTC-USD"),
		VUnit:          getEnvInt64("FOOTPRINT_V_UNIT", 1000),
		TickSize:       getEnvFloat("FOOTPRINT_TICK_SIZE", 0.01),
		BridgeURL:      getEnv("FOOTPRINT_BRIDGE_URL", "http://127.0.0.1:8787"),
		Port:           getEnvInt("FOOTPRINT_PORT", 8080),
		MicroAlpha:     getEnvFloat("FOOTPRINT_MICRO_ALPHA", 1.0),
		MicroNMin:      getEnvInt("FOOTPRINT_MICRO_NMIN", 20),
		MicroNMax:      getEnvInt("FOOTPRINT_MICRO_NMAX", 300),
		ForceRecompute: getEnvBool("FOOTPRINT_FORCE_RECOMPUTE", false),
	}
}

// MicroConfig projects the micro-allocation knobs out of Config.
func (c Config) MicroConfig() microalloc.Config {
	return microalloc.Config{Alpha: c.MicroAlpha, NMin: c.MicroNMin, NMax: c.MicroNMax}
}
