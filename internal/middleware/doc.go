// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package middleware provides HTTP middleware shared by the admin API:
// request IDs wired into the logging context and Prometheus request metrics
// labeled by chi route pattern.
package middleware
