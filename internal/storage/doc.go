// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations for driftchat.
//
// Conversations are stored as JSON files under ~/.driftchat/conversations/,
// one file per conversation. Writes are atomic (temp file, fsync, rename)
// so a crash mid-save never corrupts an existing conversation.
//
// # Key Types
//
//   - ConversationStore: save, load, list, search, delete
//   - ConversationMeta: lightweight metadata for listing
//
// # Usage
//
//	store, err := storage.NewConversationStoreWithDir(dir)
//	err = store.Save(conv)
//	metas, err := store.List()
//	conv, err := store.Load(metas[0].ID)
package storage
