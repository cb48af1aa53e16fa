/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

// Package config defines the on-disk configuration model and the store that
// loads, validates, and mutates it. Entities are addressed by a string id
// unique within their kind; the filename on disk is kept in sync with the id.
package config

import (
	"encoding/json"

	"github.com/ardikabs/ircnotify/internal/filter"
)

// Categories of sub-configuration directories under the config root.
const (
	CategoryClients = "clients"
	CategoryServers = "servers"
	CategoryEvents  = "events"
	CategorySinks   = "sinks"
)

// Categories lists the sub-config directories. Load reads them in the order
// clients, servers, sinks, events, so events are read after their targets.
var Categories = []string{CategoryClients, CategoryServers, CategoryEvents, CategorySinks}

// Defaults.
const (
	DefaultPollIntervalMs = 1000
	MinPollIntervalMs     = 100
)

// Root is the top-level config.json. The deprecated root-level listing
// arrays (clients/servers/events/sinks) have no fields here, so they are
// stripped on read and never written back.
type Root struct {
	PollInterval        int          `json:"pollInterval,omitempty"`
	Debug               bool         `json:"debug,omitempty"`
	DefaultLogDirectory string       `json:"defaultLogDirectory,omitempty"`
	ConfigDirectory     string       `json:"configDirectory,omitempty"`
	RescanLogsOnStartup bool         `json:"rescanLogsOnStartup,omitempty"`
	API                 *APISettings `json:"api,omitempty"`
}

// APISettings configures the control plane listener.
type APISettings struct {
	Enabled       bool   `json:"enabled"`
	Port          int    `json:"port,omitempty"`
	Host          string `json:"host,omitempty"`
	AuthToken     string `json:"authToken,omitempty"`
	EnableFileOps *bool  `json:"enableFileOps,omitempty"`
}

// FileOpsEnabled reports whether config file operations are allowed over the
// API. Defaults to enabled.
func (a *APISettings) FileOpsEnabled() bool {
	return a == nil || a.EnableFileOps == nil || *a.EnableFileOps
}

// Client describes how to discover and parse one chat application's logs.
type Client struct {
	ID              string           `json:"id"`
	Type            string           `json:"type"`
	Name            string           `json:"name,omitempty"`
	Enabled         *bool            `json:"enabled,omitempty"`
	LogDirectory    string           `json:"logDirectory"`
	Discovery       *ClientDiscovery `json:"discovery,omitempty"`
	ServerDiscovery *ServerDiscovery `json:"serverDiscovery,omitempty"`
	FileType        *FileType        `json:"fileType,omitempty"`
	ParserRules     []ParserRule     `json:"parserRules"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

// IsEnabled defaults to true when the field is absent.
func (c *Client) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// ClientDiscovery holds file discovery patterns and path extraction rules.
type ClientDiscovery struct {
	Patterns       *DiscoveryPatterns `json:"patterns,omitempty"`
	PathExtraction *PathExtraction    `json:"pathExtraction,omitempty"`
}

// DiscoveryPatterns are glob patterns per log-file role, relative to the
// client's log directory.
type DiscoveryPatterns struct {
	Console  []string `json:"console,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Queries  []string `json:"queries,omitempty"`
}

// PathExtraction extracts context from a log file's path: the server
// identifier, the channel or query name, and a console marker.
type PathExtraction struct {
	ServerPattern  string `json:"serverPattern,omitempty"`
	ServerGroup    int    `json:"serverGroup,omitempty"`
	ChannelPattern string `json:"channelPattern,omitempty"`
	ChannelGroup   int    `json:"channelGroup,omitempty"`
	QueryPattern   string `json:"queryPattern,omitempty"`
	QueryGroup     int    `json:"queryGroup,omitempty"`
	ConsolePattern string `json:"consolePattern,omitempty"`
}

// Server discovery methods.
const (
	DiscoveryStatic     = "static"
	DiscoveryFilesystem = "filesystem"
	DiscoveryJSON       = "json"
	DiscoverySQLite     = "sqlite"
)

// ServerDiscovery maps file paths or file content to canonical server
// identities.
type ServerDiscovery struct {
	Method string `json:"method"`

	// static
	Servers []StaticServer `json:"servers,omitempty"`

	// filesystem
	SearchPattern   string `json:"searchPattern,omitempty"`
	HostnamePattern string `json:"hostnamePattern,omitempty"`
	HostnameGroup   int    `json:"hostnameGroup,omitempty"`

	// json
	JSONPath      string `json:"jsonPath,omitempty"`
	ArrayPath     string `json:"arrayPath,omitempty"`
	HostnameField string `json:"hostnameField,omitempty"`
	UUIDField     string `json:"uuidField,omitempty"`
	NameField     string `json:"nameField,omitempty"`
}

// StaticServer is one entry of a static discovery list.
type StaticServer struct {
	Hostname string `json:"hostname"`
	Name     string `json:"name,omitempty"`
	UUID     string `json:"uuid,omitempty"`
}

// File types.
const (
	FileTypeText   = "text"
	FileTypeSQLite = "sqlite"
	FileTypeJSON   = "json"
)

// FileType describes the physical shape of the client's log files.
type FileType struct {
	Type         string `json:"type,omitempty"`
	Encoding     string `json:"encoding,omitempty"`
	PollInterval int    `json:"pollInterval,omitempty"`
}

// Message types a parser rule may emit.
const (
	MessagePrivmsg = "privmsg"
	MessageNotice  = "notice"
	MessageJoin    = "join"
	MessagePart    = "part"
	MessageQuit    = "quit"
	MessageNick    = "nick"
	MessageKick    = "kick"
	MessageMode    = "mode"
	MessageTopic   = "topic"
	MessageSystem  = "system"
	MessageUnknown = "unknown"
)

// ParserRule is one priority-ordered regex rule. Captures maps semantic
// field names to named capture groups of the pattern; unknown keys spill
// into the context metadata.
type ParserRule struct {
	Name        string            `json:"name"`
	Pattern     string            `json:"pattern"`
	Flags       string            `json:"flags,omitempty"`
	MessageType string            `json:"messageType,omitempty"`
	Captures    map[string]string `json:"captures,omitempty"`
	Priority    int               `json:"priority,omitempty"`
	Skip        bool              `json:"skip,omitempty"`
}

// Server is one configured IRC server identity.
type Server struct {
	ID             string              `json:"id"`
	Hostname       string              `json:"hostname"`
	DisplayName    string              `json:"displayName,omitempty"`
	ClientNickname string              `json:"clientNickname,omitempty"`
	Network        string              `json:"network,omitempty"`
	Port           int                 `json:"port,omitempty"`
	Enabled        *bool               `json:"enabled,omitempty"`
	Users          map[string]UserInfo `json:"users,omitempty"`
	Metadata       map[string]any      `json:"metadata,omitempty"`
}

// IsEnabled defaults to true when the field is absent.
func (s *Server) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// UserInfo augments a nickname with identity metadata merged into matched
// contexts.
type UserInfo struct {
	Realname string         `json:"realname,omitempty"`
	Modes    []string       `json:"modes,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Sink types.
const (
	SinkNtfy     = "ntfy"
	SinkWebhook  = "webhook"
	SinkConsole  = "console"
	SinkFile     = "file"
	SinkSlack    = "slack"
	SinkTelegram = "telegram"
	SinkCustom   = "custom"
)

// Sink is one notification destination.
type Sink struct {
	ID                string             `json:"id"`
	Type              string             `json:"type"`
	Name              string             `json:"name,omitempty"`
	Enabled           *bool              `json:"enabled,omitempty"`
	Config            map[string]any     `json:"config,omitempty"`
	Template          *SinkTemplate      `json:"template,omitempty"`
	RateLimit         *RateLimit         `json:"rateLimit,omitempty"`
	AllowedMetadata   []string           `json:"allowedMetadata,omitempty"`
	PayloadTransforms []PayloadTransform `json:"payloadTransforms,omitempty"`
	QuietHours        *QuietHours        `json:"quietHours,omitempty"`
	Metadata          map[string]any     `json:"metadata,omitempty"`
}

// IsEnabled defaults to true when the field is absent.
func (s *Sink) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// Template formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// SinkTemplate overrides the default notification title and body templates.
type SinkTemplate struct {
	Title  string `json:"title,omitempty"`
	Body   string `json:"body,omitempty"`
	Format string `json:"format,omitempty"`
}

// RateLimit bounds deliveries per sliding window. Zero means unlimited.
type RateLimit struct {
	MaxPerMinute int `json:"maxPerMinute,omitempty"`
	MaxPerHour   int `json:"maxPerHour,omitempty"`
}

// QuietHours suppresses deliveries between a start cron firing and the next
// end cron firing, evaluated in the given timezone.
type QuietHours struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone,omitempty"`
}

// Body formats a payload transform may produce.
const (
	BodyJSON   = "json"
	BodyText   = "text"
	BodyForm   = "form"
	BodyCustom = "custom"
)

// PayloadTransform is a webhook-specific recipe for constructing an outgoing
// HTTP request.
type PayloadTransform struct {
	Name         string                 `json:"name"`
	Condition    *filter.Group          `json:"condition,omitempty"`
	BodyFormat   string                 `json:"bodyFormat"`
	JSONTemplate map[string]any         `json:"jsonTemplate,omitempty"`
	TextTemplate string                 `json:"textTemplate,omitempty"`
	FormTemplate map[string]string      `json:"formTemplate,omitempty"`
	ContentType  string                 `json:"contentType,omitempty"`
	Method       string                 `json:"method,omitempty"`
	Headers      map[string]HeaderValue `json:"headers,omitempty"`
	Priority     int                    `json:"priority,omitempty"`
}

// HeaderValue is either a literal string or a {"template": "..."} object
// rendered against the transform scope.
type HeaderValue struct {
	Literal  string
	Template string
}

// UnmarshalJSON accepts both header value shapes.
func (h *HeaderValue) UnmarshalJSON(data []byte) error {
	var literal string
	if err := json.Unmarshal(data, &literal); err == nil {
		h.Literal = literal
		return nil
	}
	var obj struct {
		Template string `json:"template"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	h.Template = obj.Template
	return nil
}

// MarshalJSON writes the original shape back.
func (h HeaderValue) MarshalJSON() ([]byte, error) {
	if h.Template != "" {
		return json.Marshal(map[string]string{"template": h.Template})
	}
	return json.Marshal(h.Literal)
}

// Base event types.
const (
	BaseMessage    = "message"
	BaseJoin       = "join"
	BasePart       = "part"
	BaseQuit       = "quit"
	BaseNick       = "nick"
	BaseKick       = "kick"
	BaseMode       = "mode"
	BaseTopic      = "topic"
	BaseConnect    = "connect"
	BaseDisconnect = "disconnect"
	BaseAny        = "any"
)

// WildcardServerID in an event's serverIds means every enabled server.
const WildcardServerID = "*"

// Event routes matching contexts to sinks.
type Event struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Enabled   *bool           `json:"enabled,omitempty"`
	BaseEvent string          `json:"baseEvent"`
	ServerIDs []string        `json:"serverIds"`
	SinkIDs   []string        `json:"sinkIds"`
	Priority  int             `json:"priority,omitempty"`
	Group     string         `json:"group,omitempty"`
	Filters   *filter.Group  `json:"filters,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IsEnabled defaults to true when the field is absent.
func (e *Event) IsEnabled() bool { return e.Enabled == nil || *e.Enabled }

// SinkOverrides returns the per-sink metadata override map for sinkID, or
// nil. The nested metadata.sink[sinkID] shape is authoritative.
//
// Deprecated: the flat metadata[sinkID] lookup is kept for configs written
// before the nested shape existed and is consulted only when the nested
// shape is absent.
func (e *Event) SinkOverrides(sinkID string) map[string]any {
	if e.Metadata == nil {
		return nil
	}
	if sinks, ok := e.Metadata["sink"].(map[string]any); ok {
		if overrides, ok := sinks[sinkID].(map[string]any); ok {
			return overrides
		}
	}
	if overrides, ok := e.Metadata[sinkID].(map[string]any); ok {
		return overrides
	}
	return nil
}

// HostOverride returns the event's metadata.host map, merged into the
// context's server fields during evaluation.
func (e *Event) HostOverride() map[string]any {
	if e.Metadata == nil {
		return nil
	}
	if host, ok := e.Metadata["host"].(map[string]any); ok {
		return host
	}
	return nil
}
