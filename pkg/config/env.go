package config

import "strings"

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// IsDevelopment returns true if the server runs in the development environment.
func (c *ServerConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, EnvDevelopment)
}

// IsProductionLike returns true for staging and production.
func (c *ServerConfig) IsProductionLike() bool {
	return isProductionLike(c.Environment)
}

func isProductionLike(environment string) bool {
	env := strings.ToLower(environment)
	return env == EnvStaging || env == EnvProduction
}
