// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrOffline is returned when a provider request is attempted in
	// offline mode.
	ErrOffline = errors.New("offline mode: provider requests blocked")

	// ErrInvalidURLScheme is returned when an endpoint URL uses a scheme
	// other than http or https.
	// SECURITY: Blocks file://, javascript://, data://, and other
	// dangerous schemes regardless of offline state.
	ErrInvalidURLScheme = errors.New("only http and https schemes are allowed")

	// ErrNonLocalhost is returned when a non-localhost endpoint is used
	// while offline mode is active.
	ErrNonLocalhost = errors.New("offline mode: only localhost endpoints allowed")
)

// =============================================================================
// MODE MANAGEMENT
// =============================================================================

// Global offline mode state with thread-safe access.
var (
	offlineMode      bool
	offlineModeMutex sync.RWMutex
)

// SetOfflineMode enables or disables offline mode globally. When enabled,
// provider requests fail fast with ErrOffline and outgoing messages should
// be queued instead.
func SetOfflineMode(enabled bool) {
	offlineModeMutex.Lock()
	defer offlineModeMutex.Unlock()
	offlineMode = enabled
}

// IsOfflineMode returns true if offline mode is currently enabled.
func IsOfflineMode() bool {
	offlineModeMutex.RLock()
	defer offlineModeMutex.RUnlock()
	return offlineMode
}

// CheckSendAllowed returns ErrOffline when provider requests are blocked.
func CheckSendAllowed() error {
	if IsOfflineMode() {
		return ErrOffline
	}
	return nil
}

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost checks if a host string refers to localhost. Accepts
// "localhost" and any IPv4/IPv6 loopback address, with or without port.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	host = strings.ToLower(host)

	if host == "localhost" {
		return true
	}
	// Covers the whole 127.0.0.0/8 range and every IPv6 loopback form.
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateEndpointURL checks a provider or gateway base URL. Scheme
// validation always applies; the localhost restriction only applies while
// offline mode is active (a local gateway is still reachable offline).
func ValidateEndpointURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURLScheme
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}

	if IsOfflineMode() && !IsLocalhost(parsed.Hostname()) {
		return ErrNonLocalhost
	}
	return nil
}

// =============================================================================
// CONNECTIVITY PROBE
// =============================================================================

// probeTargets are well-known provider hosts. Reaching any one of them
// counts as connected; a single down provider should not keep us queued.
var probeTargets = []string{
	"api.groq.com:443",
	"api.openai.com:443",
	"api.anthropic.com:443",
}

// probeTimeout bounds each dial attempt.
const probeTimeout = 3 * time.Second

// Probe reports whether any provider endpoint is reachable. Used before
// draining the send queue; it never mutates the offline flag, which stays
// under user control.
func Probe(ctx context.Context) bool {
	dialer := &net.Dialer{Timeout: probeTimeout}
	for _, target := range probeTargets {
		conn, err := dialer.DialContext(ctx, "tcp", target)
		if err == nil {
			conn.Close()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

// =============================================================================
// STATUS DISPLAY
// =============================================================================

// StatusBadge returns "[OFFLINE]" when offline mode is on, else "".
func StatusBadge() string {
	if IsOfflineMode() {
		return "[OFFLINE]"
	}
	return ""
}
