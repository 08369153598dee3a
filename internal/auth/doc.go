// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package auth authenticates staff on the admin API with HS256 bearer
// tokens and enforces the role hierarchy viewer < moderator < admin.
//
// Viewers read subject state and history and watch the alert feed.
// Moderators pardon players and schedule rechecks. Admins manage the ban
// list. Mode "none" disables authentication for local development; every
// request then acts as admin.
package auth
