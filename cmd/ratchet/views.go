package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ratchet/internal/ipc"
)

func buildItemRows(items []ipc.ItemView) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Kind,
			item.Priority,
			formatStatusLabel(item.Status),
			formatStatusLabel(item.Stage),
			fmt.Sprintf("%d/%d", item.AttemptCount, item.MaxAttempts),
			formatDisplayTime(item.CreatedAt),
		})
	}
	return rows
}

var itemHeaders = []string{"ID", "Kind", "Priority", "Status", "Stage", "Attempts", "Created"}

var itemAligns = []columnAlignment{
	alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft,
}

func buildLedgerRows(entries []ipc.LedgerEntryView) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", entry.ID),
			shortID(entry.ItemID),
			formatDisplayTime(entry.Timestamp),
			entry.Kind,
			transitionLabel(entry.FromStatus, entry.ToStatus),
			entry.Actor,
			entry.Reason,
		})
	}
	return rows
}

var ledgerHeaders = []string{"Seq", "Item", "Time", "Kind", "Transition", "Actor", "Reason"}

var ledgerAligns = []columnAlignment{
	alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft,
}

func buildStatsRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func transitionLabel(from, to string) string {
	if from == to {
		return formatStatusLabel(from)
	}
	return formatStatusLabel(from) + " -> " + formatStatusLabel(to)
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Format("2006-01-02 15:04:05")
		}
	}
	return value
}

// shortID truncates uuids for table display; full ids remain available via
// show and the JSON output mode.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
