// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline handles working without a network connection.
//
// When offline mode is on, provider requests are blocked and outgoing
// messages land in a persisted FIFO queue instead. When the connection
// comes back, the queue is drained in order through a caller-supplied
// send function.
//
// # Usage
//
//	offline.SetOfflineMode(true)
//
//	if err := offline.CheckSendAllowed(); err != nil {
//		queue.Enqueue(conversationID, prompt)
//	}
//
//	// Back online:
//	offline.SetOfflineMode(false)
//	sent, err := queue.Drain(ctx, sendFn)
package offline
