/*
Copyright 2026 Ardika Saputro.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package e2e

import (
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const mentionEvent = `{
	"name": "Mention",
	"baseEvent": "message",
	"serverIds": ["*"],
	"sinkIds": ["out"],
	"filters": {
		"operator": "AND",
		"filters": [{"field": "message.content", "operator": "contains", "value": "{{server.clientNickname}}"}]
	}
}`

var _ = Describe("Pipeline", func() {
	It("delivers a mention alert with rendered templates", func() {
		f := newFixture(func(f *fixture) (string, string) {
			return mentionEvent, f.fileSink("")
		})

		channel := filepath.Join(f.logDir, "Libera", "Channels", "#go-nuts.txt")
		appendLine(channel, "[12:00:01] <bob> unrelated chatter")
		appendLine(channel, "[12:00:05] <bob> hi amallin")

		Eventually(f.output, 5*time.Second, 100*time.Millisecond).
			Should(Equal("[[Libera] bob] hi amallin\n"))
		Consistently(f.output, 500*time.Millisecond, 100*time.Millisecond).
			Should(Equal("[[Libera] bob] hi amallin\n"))
	})

	It("routes direct messages via target.type", func() {
		f := newFixture(func(f *fixture) (string, string) {
			event := `{
				"name": "DM",
				"baseEvent": "message",
				"serverIds": ["*"],
				"sinkIds": ["out"],
				"filters": {
					"operator": "AND",
					"filters": [{"field": "target.type", "operator": "equals", "value": "query"}]
				}
			}`
			sink := `{
				"type": "file",
				"config": {"path": "` + f.outPath + `"},
				"template": {"title": "dm from {{target.name}}", "body": "{{message.content}}"}
			}`
			return event, sink
		})

		appendLine(filepath.Join(f.logDir, "Libera", "Channels", "#go-nuts.txt"), "[12:00:05] <alice> in channel")
		appendLine(filepath.Join(f.logDir, "Libera", "Queries", "alice.txt"), "[12:00:06] <alice> psst")

		Eventually(f.output, 5*time.Second, 100*time.Millisecond).
			Should(Equal("[dm from alice] psst\n"))
	})

	It("enforces the per-minute rate limit", func() {
		f := newFixture(func(f *fixture) (string, string) {
			event := `{"name": "All", "baseEvent": "message", "serverIds": ["*"], "sinkIds": ["out"]}`
			return event, f.fileSink(`, "rateLimit": {"maxPerMinute": 2}`)
		})

		channel := filepath.Join(f.logDir, "Libera", "Channels", "#go-nuts.txt")
		appendLine(channel, "[12:00:01] <bob> one")
		appendLine(channel, "[12:00:02] <bob> two")
		appendLine(channel, "[12:00:03] <bob> three")

		Eventually(func() int {
			return strings.Count(f.output(), "\n")
		}, 5*time.Second, 100*time.Millisecond).Should(Equal(2))
		Consistently(func() int {
			return strings.Count(f.output(), "\n")
		}, time.Second, 100*time.Millisecond).Should(Equal(2))
	})

	It("drops session markers via skip rules", func() {
		f := newFixture(func(f *fixture) (string, string) {
			event := `{"name": "All", "baseEvent": "message", "serverIds": ["*"], "sinkIds": ["out"]}`
			return event, f.fileSink("")
		})

		channel := filepath.Join(f.logDir, "Libera", "Channels", "#go-nuts.txt")
		appendLine(channel, "[12:00] Begin Session")
		appendLine(channel, "[12:01] <bob> hello")
		appendLine(channel, "[12:02] End Session")

		Eventually(f.output, 5*time.Second, 100*time.Millisecond).
			Should(Equal("[[Libera] bob] hello\n"))
	})

	It("delivers nothing when the referenced sink is disabled", func() {
		f := newFixture(func(f *fixture) (string, string) {
			event := `{"name": "All", "baseEvent": "message", "serverIds": ["*"], "sinkIds": ["out"]}`
			return event, f.fileSink(`, "enabled": false`)
		})

		appendLine(filepath.Join(f.logDir, "Libera", "Channels", "#go-nuts.txt"), "[12:00:05] <bob> hi amallin")

		Consistently(f.output, time.Second, 100*time.Millisecond).Should(BeEmpty())
	})
})
