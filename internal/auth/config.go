// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package auth

import (
	"fmt"
	"time"
)

// Authentication modes.
const (
	ModeJWT  = "jwt"
	ModeNone = "none"
)

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

// Config holds authentication settings.
type Config struct {
	Mode      string        `koanf:"mode" validate:"oneof=jwt none"`
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl" validate:"gt=0"`
	Issuer    string        `koanf:"issuer"`
}

// DefaultConfig returns production defaults. The secret must be supplied.
func DefaultConfig() Config {
	return Config{
		Mode:     ModeJWT,
		TokenTTL: 12 * time.Hour,
		Issuer:   "vigil",
	}
}

// Validate checks settings the struct tags cannot express.
func (c *Config) Validate() error {
	if c.Mode == ModeJWT && len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters in jwt mode", MinSecretLength)
	}
	return nil
}
