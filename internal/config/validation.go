/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package config

import (
	"net/url"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"github.com/ardikabs/ircnotify/internal/filter"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var validMessageTypes = []string{
	MessagePrivmsg, MessageNotice, MessageJoin, MessagePart, MessageQuit,
	MessageNick, MessageKick, MessageMode, MessageTopic, MessageSystem,
}

var validBaseEvents = []string{
	BaseMessage, BaseJoin, BasePart, BaseQuit, BaseNick, BaseKick,
	BaseMode, BaseTopic, BaseConnect, BaseDisconnect, BaseAny,
}

var validSinkTypes = []string{
	SinkNtfy, SinkWebhook, SinkConsole, SinkFile, SinkSlack, SinkTelegram, SinkCustom,
}

var validDiscoveryMethods = []string{
	DiscoveryStatic, DiscoveryFilesystem, DiscoveryJSON, DiscoverySQLite,
}

var validFileTypes = []string{FileTypeText, FileTypeSQLite, FileTypeJSON}

var validBodyFormats = []string{BodyJSON, BodyText, BodyForm, BodyCustom}

// ValidateRoot applies defaults and range checks to the root config.
func ValidateRoot(root *Root) error {
	if root.PollInterval == 0 {
		root.PollInterval = DefaultPollIntervalMs
	}
	if root.PollInterval < MinPollIntervalMs {
		return validationErr("config", "", "pollInterval", "must be at least %d ms, got %d", MinPollIntervalMs, root.PollInterval)
	}
	if root.API != nil && root.API.Enabled {
		if root.API.Port < 1 || root.API.Port > 65535 {
			return validationErr("config", "", "api.port", "must be between 1 and 65535, got %d", root.API.Port)
		}
	}
	return nil
}

// ValidateClient checks one client config, compiling every regex it carries.
func ValidateClient(c *Client) error {
	if c.ID == "" {
		return validationErr("client", "", "id", "is required")
	}
	if c.Type == "" {
		return validationErr("client", c.ID, "type", "is required")
	}
	if c.LogDirectory == "" {
		return validationErr("client", c.ID, "logDirectory", "is required")
	}

	if c.FileType != nil {
		if c.FileType.Type != "" && !lo.Contains(validFileTypes, c.FileType.Type) {
			return validationErr("client", c.ID, "fileType.type", "unknown file type %q", c.FileType.Type)
		}
		if c.FileType.PollInterval != 0 && c.FileType.PollInterval < MinPollIntervalMs {
			return validationErr("client", c.ID, "fileType.pollInterval", "must be at least %d ms, got %d", MinPollIntervalMs, c.FileType.PollInterval)
		}
	}

	if c.Discovery != nil && c.Discovery.PathExtraction != nil {
		pe := c.Discovery.PathExtraction
		for field, pattern := range map[string]string{
			"serverPattern":  pe.ServerPattern,
			"channelPattern": pe.ChannelPattern,
			"queryPattern":   pe.QueryPattern,
			"consolePattern": pe.ConsolePattern,
		} {
			if pattern == "" {
				continue
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return validationErr("client", c.ID, "discovery.pathExtraction."+field, "invalid regex: %v", err)
			}
		}
	}

	if sd := c.ServerDiscovery; sd != nil {
		if !lo.Contains(validDiscoveryMethods, sd.Method) {
			return validationErr("client", c.ID, "serverDiscovery.method", "unknown method %q", sd.Method)
		}
		switch sd.Method {
		case DiscoveryStatic:
			if len(sd.Servers) == 0 {
				return validationErr("client", c.ID, "serverDiscovery.servers", "static discovery requires at least one server")
			}
		case DiscoveryFilesystem:
			if sd.SearchPattern == "" {
				return validationErr("client", c.ID, "serverDiscovery.searchPattern", "is required for filesystem discovery")
			}
			if sd.HostnamePattern == "" {
				return validationErr("client", c.ID, "serverDiscovery.hostnamePattern", "is required for filesystem discovery")
			}
			if _, err := regexp.Compile(sd.HostnamePattern); err != nil {
				return validationErr("client", c.ID, "serverDiscovery.hostnamePattern", "invalid regex: %v", err)
			}
		case DiscoveryJSON:
			if sd.JSONPath == "" {
				return validationErr("client", c.ID, "serverDiscovery.jsonPath", "is required for json discovery")
			}
			if sd.HostnameField == "" {
				return validationErr("client", c.ID, "serverDiscovery.hostnameField", "is required for json discovery")
			}
		}
	}

	if len(c.ParserRules) == 0 {
		return validationErr("client", c.ID, "parserRules", "at least one rule is required")
	}
	for i := range c.ParserRules {
		rule := &c.ParserRules[i]
		if rule.Pattern == "" {
			return validationErr("client", c.ID, "parserRules", "rule %q has no pattern", rule.Name)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return validationErr("client", c.ID, "parserRules", "rule %q has an invalid pattern: %v", rule.Name, err)
		}
		if rule.MessageType != "" && !lo.Contains(validMessageTypes, rule.MessageType) {
			return validationErr("client", c.ID, "parserRules", "rule %q has unknown messageType %q", rule.Name, rule.MessageType)
		}
	}

	return nil
}

// ValidateServer checks one server config.
func ValidateServer(s *Server) error {
	if s.ID == "" {
		return validationErr("server", "", "id", "is required")
	}
	if s.Hostname == "" {
		return validationErr("server", s.ID, "hostname", "is required")
	}
	if s.Port != 0 && (s.Port < 1 || s.Port > 65535) {
		return validationErr("server", s.ID, "port", "must be between 1 and 65535, got %d", s.Port)
	}
	return nil
}

// ValidateSink checks one sink config including its payload transforms and
// quiet-hours windows.
func ValidateSink(s *Sink) error {
	if s.ID == "" {
		return validationErr("sink", "", "id", "is required")
	}
	if !lo.Contains(validSinkTypes, s.Type) {
		return validationErr("sink", s.ID, "type", "unknown sink type %q", s.Type)
	}

	if s.RateLimit != nil {
		if s.RateLimit.MaxPerMinute < 0 || (s.RateLimit.MaxPerMinute == 0 && s.RateLimit.MaxPerHour == 0) {
			return validationErr("sink", s.ID, "rateLimit", "at least one of maxPerMinute and maxPerHour must be >= 1")
		}
		if s.RateLimit.MaxPerHour < 0 {
			return validationErr("sink", s.ID, "rateLimit.maxPerHour", "must be >= 1")
		}
	}

	if s.Template != nil && s.Template.Format != "" {
		if !lo.Contains([]string{FormatText, FormatMarkdown, FormatJSON}, s.Template.Format) {
			return validationErr("sink", s.ID, "template.format", "unknown format %q", s.Template.Format)
		}
	}

	switch s.Type {
	case SinkNtfy:
		endpoint, _ := s.Config["endpoint"].(string)
		if endpoint == "" {
			return validationErr("sink", s.ID, "config.endpoint", "is required for ntfy sinks")
		}
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return validationErr("sink", s.ID, "config.endpoint", "invalid URL: %v", err)
		}
		if topic, _ := s.Config["topic"].(string); topic == "" {
			return validationErr("sink", s.ID, "config.topic", "is required for ntfy sinks")
		}
	case SinkWebhook:
		endpoint, _ := s.Config["url"].(string)
		if endpoint == "" {
			return validationErr("sink", s.ID, "config.url", "is required for webhook sinks")
		}
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return validationErr("sink", s.ID, "config.url", "invalid URL: %v", err)
		}
	case SinkFile:
		if path, _ := s.Config["path"].(string); path == "" {
			return validationErr("sink", s.ID, "config.path", "is required for file sinks")
		}
	case SinkSlack:
		token, _ := s.Config["token"].(string)
		webhookURL, _ := s.Config["webhookUrl"].(string)
		if token == "" && webhookURL == "" {
			return validationErr("sink", s.ID, "config", "slack sinks require token or webhookUrl")
		}
		if token != "" {
			if channel, _ := s.Config["channel"].(string); channel == "" {
				return validationErr("sink", s.ID, "config.channel", "is required with a slack token")
			}
		}
	case SinkTelegram:
		if token, _ := s.Config["token"].(string); token == "" {
			return validationErr("sink", s.ID, "config.token", "is required for telegram sinks")
		}
		if chatID, _ := s.Config["chatId"].(string); chatID == "" {
			return validationErr("sink", s.ID, "config.chatId", "is required for telegram sinks")
		}
	}

	if len(s.PayloadTransforms) > 0 && s.Type != SinkWebhook {
		return validationErr("sink", s.ID, "payloadTransforms", "only webhook sinks support payload transforms")
	}
	for i := range s.PayloadTransforms {
		if err := validateTransform(s.ID, &s.PayloadTransforms[i]); err != nil {
			return err
		}
	}

	if qh := s.QuietHours; qh != nil {
		if _, err := cronParser.Parse(qh.Start); err != nil {
			return validationErr("sink", s.ID, "quietHours.start", "invalid cron expression: %v", err)
		}
		if _, err := cronParser.Parse(qh.End); err != nil {
			return validationErr("sink", s.ID, "quietHours.end", "invalid cron expression: %v", err)
		}
		if qh.Timezone != "" {
			if _, err := time.LoadLocation(qh.Timezone); err != nil {
				return validationErr("sink", s.ID, "quietHours.timezone", "unknown timezone %q", qh.Timezone)
			}
		}
	}

	return nil
}

func validateTransform(sinkID string, t *PayloadTransform) error {
	if t.Name == "" {
		return validationErr("sink", sinkID, "payloadTransforms", "transform has no name")
	}
	if !lo.Contains(validBodyFormats, t.BodyFormat) {
		return validationErr("sink", sinkID, "payloadTransforms", "transform %q has unknown bodyFormat %q", t.Name, t.BodyFormat)
	}
	switch t.BodyFormat {
	case BodyJSON:
		if t.JSONTemplate == nil {
			return validationErr("sink", sinkID, "payloadTransforms", "transform %q requires jsonTemplate", t.Name)
		}
	case BodyText:
		if t.TextTemplate == "" {
			return validationErr("sink", sinkID, "payloadTransforms", "transform %q requires textTemplate", t.Name)
		}
	case BodyForm:
		if t.FormTemplate == nil {
			return validationErr("sink", sinkID, "payloadTransforms", "transform %q requires formTemplate", t.Name)
		}
	}
	if t.Condition != nil {
		if _, err := filter.Compile(t.Condition); err != nil {
			return validationErr("sink", sinkID, "payloadTransforms", "transform %q condition: %v", t.Name, err)
		}
	}
	return nil
}

// ValidateEvent checks one event config. Reference pruning happens later,
// once all entities are registered.
func ValidateEvent(e *Event) error {
	if e.ID == "" {
		return validationErr("event", "", "id", "is required")
	}
	if !lo.Contains(validBaseEvents, e.BaseEvent) {
		return validationErr("event", e.ID, "baseEvent", "unknown base event %q", e.BaseEvent)
	}
	if e.Filters != nil {
		if _, err := filter.Compile(e.Filters); err != nil {
			return validationErr("event", e.ID, "filters", "%v", err)
		}
	}
	return nil
}
