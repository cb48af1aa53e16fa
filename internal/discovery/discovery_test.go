/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardikabs/ircnotify/internal/config"
)

func TestStaticDiscovery(t *testing.T) {
	result, err := Discover(&config.ServerDiscovery{
		Method: config.DiscoveryStatic,
		Servers: []config.StaticServer{
			{Hostname: "irc.libera.chat", Name: "Libera"},
			{Hostname: "irc.oftc.net"},
		},
	}, "", logr.Discard())
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	entry, ok := result.Match("Libera")
	require.True(t, ok)
	assert.Equal(t, "irc.libera.chat", entry.Hostname)

	entry, ok = result.Match("irc.oftc.net")
	require.True(t, ok)
	assert.Equal(t, "irc.oftc.net", entry.Hostname)

	_, ok = result.Match("unknown")
	assert.False(t, ok)
}

func TestFilesystemDiscovery(t *testing.T) {
	dir := t.TempDir()
	serverDir := filepath.Join(dir, "networks", "libera")
	require.NoError(t, os.MkdirAll(serverDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(serverDir, "server.conf"),
		[]byte("nick=amallin\nhost=irc.libera.chat\n"), 0o644))

	result, err := Discover(&config.ServerDiscovery{
		Method:          config.DiscoveryFilesystem,
		SearchPattern:   "networks/*/server.conf",
		HostnamePattern: `host=([^\s]+)`,
	}, dir, logr.Discard())
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "irc.libera.chat", result.Entries[0].Hostname)

	h, ok := result.HostnameForDir(serverDir)
	require.True(t, ok)
	assert.Equal(t, "irc.libera.chat", h)

	h, ok = result.HostnameForPath(filepath.Join(serverDir, "server.conf"))
	require.True(t, ok)
	assert.Equal(t, "irc.libera.chat", h)
}

func TestJSONDiscovery(t *testing.T) {
	dir := t.TempDir()
	catalog := `{
		"networks": [
			{"uuid": "1f9c3a00-4f7e-4c6d-9a2b-aa00bb11cc22", "name": "Libera", "connection": {"host": "irc.libera.chat"}},
			{"uuid": "2a00aa11-1111-2222-3333-444455556666", "name": "OFTC", "connection": {"host": "irc.oftc.net"}}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "networks.json"), []byte(catalog), 0o644))

	result, err := Discover(&config.ServerDiscovery{
		Method:        config.DiscoveryJSON,
		JSONPath:      "networks.json",
		ArrayPath:     "networks",
		HostnameField: "connection.host",
		UUIDField:     "uuid",
		NameField:     "name",
	}, dir, logr.Discard())
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	// Full UUID match.
	entry, ok := result.Match("1f9c3a00-4f7e-4c6d-9a2b-aa00bb11cc22")
	require.True(t, ok)
	assert.Equal(t, "irc.libera.chat", entry.Hostname)

	// TheLounge-style last-three-segment suffix.
	entry, ok = result.Match("4c6d-9a2b-aa00bb11cc22")
	require.True(t, ok)
	assert.Equal(t, "irc.libera.chat", entry.Hostname)
}

func TestSQLiteDiscoveryReserved(t *testing.T) {
	_, err := Discover(&config.ServerDiscovery{Method: config.DiscoverySQLite}, "", logr.Discard())
	assert.ErrorIs(t, err, config.ErrNotImplemented)
}

func TestMatchesUUID(t *testing.T) {
	uuid := "1f9c3a00-4f7e-4c6d-9a2b-aa00bb11cc22"
	assert.True(t, MatchesUUID(uuid, uuid))
	assert.True(t, MatchesUUID(uuid, "4c6d-9a2b-aa00bb11cc22"))
	assert.False(t, MatchesUUID(uuid, "9a2b-aa00bb11cc22"))
	assert.False(t, MatchesUUID(uuid, ""))
}
