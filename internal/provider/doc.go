// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements the cloud LLM backends: Groq and OpenAI
// through the OpenAI-compatible chat completions API, and Anthropic
// through the Messages API.
//
// Each backend speaks its own SSE dialect on the wire. Providers
// normalize those dialects into the typed line protocol consumed by
// internal/stream, so the decoder and message assembler see exactly one
// wire contract regardless of backend.
package provider
