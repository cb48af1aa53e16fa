/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

// Package parser turns raw log lines into normalized message contexts by
// applying a client's priority-ordered regex rules, and derives partial
// context (server identifier, channel, query, console) from log file paths.
package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/discovery"
	"github.com/ardikabs/ircnotify/internal/message"
)

// Canonical capture keys; anything else spills into context metadata.
const (
	captureTimestamp = "timestamp"
	captureNickname  = "nickname"
	captureUsername  = "username"
	captureHostname  = "hostname"
	captureContent   = "content"
	captureTarget    = "target"
)

// timestampLayouts are tried in order when parsing a captured timestamp.
// Time-only layouts are completed with the current date.
var timestampLayouts = []struct {
	layout   string
	timeOnly bool
}{
	{time.RFC3339, false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02T15:04:05", false},
	{"01/02/2006 15:04:05", false},
	{"15:04:05", true},
	{"15:04", true},
}

type compiledRule struct {
	cfg *config.ParserRule
	re  *regexp.Regexp
}

// Parser applies one client's rules. Construction compiles every regex so
// the per-line path never compiles.
type Parser struct {
	client *config.Client
	rules  []compiledRule

	serverRe  *regexp.Regexp
	channelRe *regexp.Regexp
	queryRe   *regexp.Regexp
	consoleRe *regexp.Regexp
}

// New compiles a parser for the client's rule set and path extraction
// patterns.
func New(client *config.Client) (*Parser, error) {
	p := &Parser{client: client}

	for i := range client.ParserRules {
		rule := &client.ParserRules[i]
		re, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
		}
		p.rules = append(p.rules, compiledRule{cfg: rule, re: re})
	}
	// Higher priority first; equal priorities keep config order.
	sort.SliceStable(p.rules, func(i, j int) bool {
		return p.rules[i].cfg.Priority > p.rules[j].cfg.Priority
	})

	if client.Discovery != nil && client.Discovery.PathExtraction != nil {
		pe := client.Discovery.PathExtraction
		var err error
		if p.serverRe, err = compileOptional(pe.ServerPattern); err != nil {
			return nil, fmt.Errorf("serverPattern: %w", err)
		}
		if p.channelRe, err = compileOptional(pe.ChannelPattern); err != nil {
			return nil, fmt.Errorf("channelPattern: %w", err)
		}
		if p.queryRe, err = compileOptional(pe.QueryPattern); err != nil {
			return nil, fmt.Errorf("queryPattern: %w", err)
		}
		if p.consoleRe, err = compileOptional(pe.ConsolePattern); err != nil {
			return nil, fmt.Errorf("consolePattern: %w", err)
		}
	}

	return p, nil
}

func compileRule(rule *config.ParserRule) (*regexp.Regexp, error) {
	pattern := rule.Pattern
	var inline string
	for _, f := range rule.Flags {
		switch f {
		case 'i', 'm', 's':
			inline += string(f)
		}
	}
	if inline != "" {
		pattern = "(?" + inline + ")" + pattern
	}
	return regexp.Compile(pattern)
}

func compileOptional(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// PartialFromPath builds the path-derived partial context handed to
// ParseLine for every line of the file: client identity, server identifier
// and hostname, and the target (console, channel, or query, checked in that
// order).
func (p *Parser) PartialFromPath(path string, disc *discovery.Result) *message.Context {
	ctx := &message.Context{
		Client: message.ClientRef{
			ID:       p.client.ID,
			Type:     p.client.Type,
			Name:     p.client.Name,
			Metadata: p.client.Metadata,
		},
		Metadata: map[string]any{},
	}

	pe := (*config.PathExtraction)(nil)
	if p.client.Discovery != nil {
		pe = p.client.Discovery.PathExtraction
	}

	var identifier string
	if p.serverRe != nil {
		if m := p.serverRe.FindStringSubmatch(path); m != nil {
			group := 1
			if pe != nil && pe.ServerGroup > 0 {
				group = pe.ServerGroup
			}
			if group < len(m) {
				identifier = m[group]
				ctx.Metadata["serverIdentifier"] = identifier
			}
		}
	}

	if disc != nil {
		if hostname, ok := disc.HostnameForPath(path); ok {
			ctx.Metadata["serverHostname"] = hostname
		} else if hostname, ok := disc.HostnameForDir(filepath.Dir(path)); ok {
			ctx.Metadata["serverHostname"] = hostname
		} else if entry, ok := disc.Match(identifier); ok && entry.Hostname != "" {
			ctx.Metadata["serverHostname"] = entry.Hostname
			if identifier == "" || discovery.MatchesUUID(entry.UUID, identifier) {
				if entry.Name != "" {
					ctx.Metadata["serverName"] = entry.Name
				}
			}
		}
	}

	switch {
	case p.consoleRe != nil && p.consoleRe.MatchString(path):
		ctx.Target = &message.Target{Name: "console", Type: message.TargetConsole}
	case p.channelRe != nil:
		if m := p.channelRe.FindStringSubmatch(path); m != nil {
			ctx.Target = &message.Target{Name: pick(m, groupOr(pe, 'c')), Type: message.TargetChannel}
		}
	}
	if ctx.Target == nil && p.queryRe != nil {
		if m := p.queryRe.FindStringSubmatch(path); m != nil {
			ctx.Target = &message.Target{Name: pick(m, groupOr(pe, 'q')), Type: message.TargetQuery}
		}
	}

	return ctx
}

func groupOr(pe *config.PathExtraction, kind byte) int {
	if pe == nil {
		return 1
	}
	switch kind {
	case 'c':
		if pe.ChannelGroup > 0 {
			return pe.ChannelGroup
		}
	case 'q':
		if pe.QueryGroup > 0 {
			return pe.QueryGroup
		}
	}
	return 1
}

func pick(m []string, group int) string {
	if group < len(m) {
		return m[group]
	}
	return ""
}

// ParseLine applies the rules to one line. It returns nil for blank lines,
// unmatched lines, and lines consumed by a skip rule.
func (p *Parser) ParseLine(line string, partial *message.Context) *message.Context {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	for _, rule := range p.rules {
		m := rule.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if rule.cfg.Skip {
			return nil
		}
		return p.buildContext(line, rule, m, partial)
	}
	return nil
}

func (p *Parser) buildContext(line string, rule compiledRule, match []string, partial *message.Context) *message.Context {
	ctx := partial.Clone()
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	ctx.Raw.Line = line
	ctx.Timestamp = time.Now()

	names := rule.re.SubexpNames()
	valueOf := func(groupName string) (string, bool) {
		for i, name := range names {
			if name == groupName && i < len(match) {
				return match[i], true
			}
		}
		return "", false
	}

	for key, groupName := range rule.cfg.Captures {
		value, ok := valueOf(groupName)
		if !ok || value == "" {
			continue
		}
		switch key {
		case captureTimestamp:
			ctx.Raw.TimestampString = value
			if ts, ok := parseTimestamp(value, ctx.Timestamp); ok {
				ctx.Timestamp = ts
			}
		case captureNickname:
			ensureSender(ctx).Nickname = value
		case captureUsername:
			ensureSender(ctx).Username = value
		case captureHostname:
			ensureSender(ctx).Hostname = value
		case captureContent:
			ensureBody(ctx).Content = value
		case captureTarget:
			if ctx.Target == nil {
				ctx.Target = &message.Target{Type: message.TargetChannel}
			}
			ctx.Target.Name = value
		default:
			ctx.Metadata[key] = value
		}
	}

	if ctx.Message == nil && rule.cfg.MessageType != "" {
		ctx.Message = &message.Body{Content: line, Type: rule.cfg.MessageType}
	} else if ctx.Message != nil {
		ctx.Message.Type = rule.cfg.MessageType
	}

	return ctx
}

func ensureSender(ctx *message.Context) *message.Sender {
	if ctx.Sender == nil {
		ctx.Sender = &message.Sender{}
	}
	return ctx.Sender
}

func ensureBody(ctx *message.Context) *message.Body {
	if ctx.Message == nil {
		ctx.Message = &message.Body{}
	}
	return ctx.Message
}

// parseTimestamp tries the known layouts; time-only layouts are anchored to
// the reference date.
func parseTimestamp(value string, ref time.Time) (time.Time, bool) {
	for _, candidate := range timestampLayouts {
		ts, err := time.ParseInLocation(candidate.layout, value, time.Local)
		if err != nil {
			continue
		}
		if candidate.timeOnly {
			ts = time.Date(ref.Year(), ref.Month(), ref.Day(),
				ts.Hour(), ts.Minute(), ts.Second(), 0, time.Local)
		}
		return ts, true
	}
	return time.Time{}, false
}
