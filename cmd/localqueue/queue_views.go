package main

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"localqueue/internal/api"
	"localqueue/internal/queue"
)

var titleCaser = cases.Title(language.Und)

// formatStateLabel renders PENDING as Pending.
func formatStateLabel(state string) string {
	trimmed := strings.TrimSpace(state)
	if trimmed == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ToLower(trimmed))
}

// buildQueueStatusRows lists every known state first, in lifecycle order,
// followed by any unexpected keys sorted by name.
func buildQueueStatusRows(stats map[string]int64) [][]string {
	rows := make([][]string, 0, len(stats))
	seen := make(map[string]struct{}, len(stats))
	for _, state := range queue.AllStates() {
		key := string(state)
		seen[key] = struct{}{}
		rows = append(rows, []string{formatStateLabel(key), strconv.FormatInt(stats[key], 10)})
	}
	var extra []string
	for key := range stats {
		if _, ok := seen[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		rows = append(rows, []string{formatStateLabel(key), strconv.FormatInt(stats[key], 10)})
	}
	return rows
}

func totalQueued(stats map[string]int64) int64 {
	var total int64
	for _, count := range stats {
		total += count
	}
	return total
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.FingerprintHex,
			item.WorkType,
			formatStateLabel(item.State),
			formatDisplayTime(item.CreatedAt),
			truncatePayload(item.Payload, 40),
		})
	}
	return rows
}

func formatDisplayTime(value string) string {
	t := api.ParseQueueTime(value)
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func truncatePayload(payload string, width int) string {
	flat := strings.Join(strings.Fields(payload), " ")
	runes := []rune(flat)
	if width <= 3 || len(runes) <= width {
		return flat
	}
	return string(runes[:width-3]) + "..."
}
