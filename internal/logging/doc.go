// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package logging provides the process-wide zerolog logger.
//
// JSON output is the default; console output is available for local runs.
// The logger is usable before Init is called, so packages may log during
// configuration loading.
//
// # Quick Start
//
//	logging.Init(logging.ConfigFromEnv())
//
//	logging.Info().Str("subject", id.String()).Str("channel", "click").Msg("violation recorded")
//	logging.Error().Err(err).Str("sink", "webhook").Msg("alert delivery failed")
//
// # Configuration
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false (default: false)
//
// # Field Names
//
// Keys are snake_case. Detection code uses subject, channel, state,
// severity and sink consistently so log queries can join across components.
//
// # slog Integration
//
// SlogHandler bridges log/slog to zerolog. It feeds the sutureslog event hook
// and the watermill logger adapter:
//
//	wmLogger := watermill.NewSlogLogger(logging.NewSlogLogger())
package logging
