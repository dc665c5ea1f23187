// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package keystore stores provider API keys encrypted at rest.
//
// Keys live in a single encrypted file (~/.driftchat/keys.enc) sealed
// with AES-256-GCM. The sealing key is either a random master key kept
// in a 0600 file alongside it, or derived from a passphrase via
// PBKDF2-SHA-256 when the store was created with one. Plaintext keys
// from config or environment variables always take precedence at the
// call site; the keystore is the durable home for keys entered through
// `driftchat setup`.
package keystore
