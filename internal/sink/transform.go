/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

package sink

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/filter"
	"github.com/ardikabs/ircnotify/internal/template"
)

// outgoingRequest is the fully resolved HTTP request a webhook delivery
// will perform.
type outgoingRequest struct {
	Method      string
	ContentType string
	Headers     map[string]string
	Body        []byte
}

type compiledTransform struct {
	cfg       *config.PayloadTransform
	condition *filter.Compiled
}

// compileTransforms validates and orders a webhook's transforms, highest
// priority first.
func compileTransforms(transforms []config.PayloadTransform) ([]compiledTransform, error) {
	out := make([]compiledTransform, 0, len(transforms))
	for i := range transforms {
		t := &transforms[i]
		ct := compiledTransform{cfg: t}
		if t.Condition != nil {
			compiled, err := filter.Compile(t.Condition)
			if err != nil {
				return nil, fmt.Errorf("transform %q condition: %w", t.Name, err)
			}
			ct.condition = compiled
		}
		out = append(out, ct)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].cfg.Priority > out[j].cfg.Priority
	})
	return out, nil
}

// selectTransform picks the transform for one delivery: an explicit name in
// the event's sink overrides wins, then the first transform whose condition
// holds, then the first unconditional catch-all.
func selectTransform(transforms []compiledTransform, overrides map[string]any, scope map[string]any) *compiledTransform {
	if name, ok := overrides["transform"].(string); ok && name != "" {
		for i := range transforms {
			if transforms[i].cfg.Name == name {
				return &transforms[i]
			}
		}
	}

	var catchAll *compiledTransform
	for i := range transforms {
		t := &transforms[i]
		if t.condition != nil {
			if t.condition.Evaluate(scope) {
				return t
			}
			continue
		}
		if catchAll == nil {
			catchAll = t
		}
	}
	return catchAll
}

// transformScope builds the template context a transform renders against:
// the rendered title and body, the full message context, the event summary
// and metadata, and the sink's own config and template fields.
func transformScope(rendered Rendered, event *config.Event, sinkCfg *config.Sink) map[string]any {
	scope := map[string]any{
		"title":   rendered.Title,
		"body":    rendered.Body,
		"context": rendered.Scope,
		"config":  anyMap(sinkCfg.Config),
	}
	if eventScope, ok := rendered.Scope["event"]; ok {
		scope["event"] = eventScope
	}

	metadata := map[string]any{}
	if ctxMeta, ok := rendered.Scope["metadata"].(map[string]any); ok {
		for k, v := range ctxMeta {
			metadata[k] = v
		}
	}
	for k, v := range event.Metadata {
		metadata[k] = v
	}
	scope["metadata"] = metadata

	if sinkCfg.Template != nil {
		if sinkCfg.Template.Format != "" {
			scope["format"] = sinkCfg.Template.Format
		}
	}
	return scope
}

func anyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// buildRequest renders the selected transform into a concrete request.
func buildRequest(t *compiledTransform, scope map[string]any, overrides map[string]any, event *config.Event) (*outgoingRequest, error) {
	cfg := t.cfg

	req := &outgoingRequest{
		Method:  http.MethodPost,
		Headers: map[string]string{},
	}
	if cfg.Method != "" {
		req.Method = cfg.Method
	}

	switch cfg.BodyFormat {
	case config.BodyJSON:
		resolved := template.ProcessValue(cfg.JSONTemplate, scope)
		encoded, err := json.Marshal(resolved)
		if err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		req.Body = encoded
		req.ContentType = "application/json"

	case config.BodyText:
		req.Body = []byte(template.Process(cfg.TextTemplate, scope))
		req.ContentType = "text/plain"

	case config.BodyForm:
		form := url.Values{}
		for key, tmpl := range cfg.FormTemplate {
			form.Set(key, template.Process(tmpl, scope))
		}
		req.Body = []byte(form.Encode())
		req.ContentType = "application/x-www-form-urlencoded"

	case config.BodyCustom:
		payload := overrides["payload"]
		if payload == nil && event.Metadata != nil {
			payload = event.Metadata["payload"]
		}
		if payload == nil {
			return nil, fmt.Errorf("transform %q requires an event-supplied payload", cfg.Name)
		}
		switch body := payload.(type) {
		case string:
			req.Body = []byte(template.Process(body, scope))
		default:
			encoded, err := json.Marshal(template.ProcessValue(body, scope))
			if err != nil {
				return nil, fmt.Errorf("encode custom body: %w", err)
			}
			req.Body = encoded
			req.ContentType = "application/json"
		}

	default:
		return nil, fmt.Errorf("transform %q has unknown bodyFormat %q", cfg.Name, cfg.BodyFormat)
	}

	if cfg.ContentType != "" {
		req.ContentType = cfg.ContentType
	}

	for name, value := range cfg.Headers {
		resolved := value.Literal
		if value.Template != "" {
			resolved = template.Process(value.Template, scope)
		}
		req.Headers[name] = asciiSanitize(resolved)
	}

	return req, nil
}
