/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package api

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/filter"
)

// Data-flow view: a derived routing topology for UIs. Nothing here feeds
// back into the pipeline.

type ruleSummary struct {
	Name        string `json:"name"`
	MessageType string `json:"messageType,omitempty"`
	Priority    int    `json:"priority"`
	Skip        bool   `json:"skip,omitempty"`
}

type clientFlow struct {
	ID      string        `json:"id"`
	Name    string        `json:"name,omitempty"`
	Type    string        `json:"type"`
	Enabled bool          `json:"enabled"`
	Rules   []ruleSummary `json:"parserRules"`
}

type serverFlow struct {
	ID          string   `json:"id"`
	Hostname    string   `json:"hostname"`
	DisplayName string   `json:"displayName,omitempty"`
	Enabled     bool     `json:"enabled"`
	Clients     []string `json:"clients"`
}

type filterSummary struct {
	Operator string `json:"operator"`
	Count    int    `json:"count"`
}

type routePath struct {
	Client string `json:"client"`
	Server string `json:"server"`
	Event  string `json:"event"`
	Sink   string `json:"sink"`
	Active bool   `json:"active"`
}

type eventFlow struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	BaseEvent string         `json:"baseEvent"`
	Enabled   bool           `json:"enabled"`
	Filters   *filterSummary `json:"filters,omitempty"`
	Routes    []routePath    `json:"routes"`
}

func (s *Server) handleDataFlow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	reg := s.store.Registry()
	if reg == nil {
		writeError(w, http.StatusNotFound, "configuration not loaded")
		return
	}

	clients := make([]clientFlow, 0, len(reg.Clients))
	for _, c := range reg.SortedClients() {
		flow := clientFlow{ID: c.ID, Name: c.Name, Type: c.Type, Enabled: c.IsEnabled()}
		for _, rule := range c.ParserRules {
			flow.Rules = append(flow.Rules, ruleSummary{
				Name:        rule.Name,
				MessageType: rule.MessageType,
				Priority:    rule.Priority,
				Skip:        rule.Skip,
			})
		}
		clients = append(clients, flow)
	}

	// Associate servers with clients by matching configured hostnames
	// against each enabled client's discovered hostnames.
	servers := make([]serverFlow, 0, len(reg.Servers))
	for _, server := range reg.SortedServers() {
		flow := serverFlow{
			ID:          server.ID,
			Hostname:    server.Hostname,
			DisplayName: server.DisplayName,
			Enabled:     server.IsEnabled(),
			Clients:     []string{},
		}
		for _, c := range reg.SortedClients() {
			if !c.IsEnabled() {
				continue
			}
			if lo.Contains(s.orch.DiscoveredHostnames(c.ID), server.Hostname) {
				flow.Clients = append(flow.Clients, c.ID)
			}
		}
		servers = append(servers, flow)
	}

	events := make([]eventFlow, 0, len(reg.Events))
	for _, event := range reg.SortedEvents() {
		flow := eventFlow{
			ID:        event.ID,
			Name:      event.Name,
			BaseEvent: event.BaseEvent,
			Enabled:   event.IsEnabled(),
			Routes:    []routePath{},
		}
		if event.Filters != nil {
			flow.Filters = &filterSummary{
				Operator: event.Filters.Operator,
				Count:    countLeaves(event.Filters),
			}
		}

		eventServers := reg.SortedServers()
		if !lo.Contains(event.ServerIDs, config.WildcardServerID) {
			eventServers = lo.Filter(eventServers, func(sv *config.Server, _ int) bool {
				return lo.Contains(event.ServerIDs, sv.ID)
			})
		}

		for _, c := range reg.SortedClients() {
			for _, sv := range eventServers {
				for _, sinkID := range event.SinkIDs {
					sinkCfg := reg.Sinks[sinkID]
					active := c.IsEnabled() && sv.IsEnabled() && event.IsEnabled() &&
						sinkCfg != nil && sinkCfg.IsEnabled()
					flow.Routes = append(flow.Routes, routePath{
						Client: c.ID,
						Server: sv.ID,
						Event:  event.ID,
						Sink:   sinkID,
						Active: active,
					})
				}
			}
		}
		events = append(events, flow)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"clients": clients,
		"servers": servers,
		"events":  events,
	})
}

func countLeaves(g *filter.Group) int {
	count := 0
	for _, node := range g.Filters {
		switch {
		case node.Leaf != nil:
			count++
		case node.Group != nil:
			count += countLeaves(node.Group)
		}
	}
	return count
}
