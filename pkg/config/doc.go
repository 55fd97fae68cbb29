// Package config loads application configuration from environment variables
// into tagged structs using github.com/caarlos0/env/v11, with optional .env
// files read through github.com/joho/godotenv.
//
// Each config type is parsed once and cached for the lifetime of the process,
// so components can call Load for their own struct without coordinating:
//
//	var cfg httpserver.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// LoadEnvFile reads additional env files (the CLI's --env-file flag) before
// the first Load. Reset clears the cache, mainly for tests.
package config
