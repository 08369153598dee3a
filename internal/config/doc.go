// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package config loads the Vigil configuration.

Configuration is layered with koanf v2. Later layers override earlier ones:

 1. Built-in defaults (each package's DefaultConfig)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml,
    /etc/vigil/config.yaml or /etc/vigil/config.yml, first match wins
 3. Environment variables from an explicit mapping table

Only mapped environment variables are read, so unrelated variables never leak
into the configuration. Commonly used variables:

  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - VIGIL_TICK_INTERVAL, VIGIL_WORKERS, VIGIL_HISTORY_SIZE
  - STORE_PATH, STORE_IN_MEMORY, STORE_HISTORY_TTL
  - NATS_URL, NATS_JETSTREAM, NATS_EMBEDDED, NATS_PORT
  - HTTP_HOST, HTTP_PORT, CORS_ORIGINS (comma separated)
  - AUTH_MODE, JWT_SECRET, JWT_TTL
  - WEBHOOK_URL, DISCORD_WEBHOOK_URL

Channels are configured under detection.channels. The built-in click, chat,
mining, movement and reach entries are defaults; a file entry merges key by
key over them. A channel not in the defaults must be specified completely.

# Validation

Load validates struct tags with go-playground/validator and then runs the
cross-field checks of each package (threshold ordering, human variation
range, secret length). An invalid configuration is an error and the process
refuses to start.
*/
package config
