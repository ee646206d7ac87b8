package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"localqueue/internal/queue"
)

// FromWorkItem converts a stored work item to its API representation. state
// may be empty when the caller does not know it.
func FromWorkItem(item queue.WorkItem, state queue.State) QueueItem {
	dto := QueueItem{
		Fingerprint:    item.Fingerprint,
		FingerprintHex: FormatFingerprint(item.Fingerprint),
		WorkType:       item.WorkType,
		Payload:        item.Payload,
		State:          string(state),
	}
	if item.CreatedAt > 0 {
		dto.CreatedAt = item.Created().UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromWorkItems converts items that share a single state.
func FromWorkItems(items []queue.WorkItem, state queue.State) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromWorkItem(item, state))
	}
	return out
}

// MergeQueueStats returns a count for every lifecycle state, zero-filled.
func MergeQueueStats(counts []queue.StateCount) map[string]int64 {
	merged := make(map[string]int64, len(queue.AllStates()))
	for _, state := range queue.AllStates() {
		merged[string(state)] = 0
	}
	for _, c := range counts {
		merged[string(c.State)] += c.Count
	}
	return merged
}

// FormatFingerprint renders a fingerprint as its 16-digit two's complement hex form.
func FormatFingerprint(fp int64) string {
	return fmt.Sprintf("%016x", uint64(fp))
}

// ParseQueueTime parses an API timestamp; it returns the zero time on failure.
func ParseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// ParseFingerprint accepts the 16-digit hex form produced by
// FormatFingerprint, any hex value prefixed with 0x, or a signed decimal.
// A bare 16-character value is always read as hex.
func ParseFingerprint(value string) (int64, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return 0, fmt.Errorf("fingerprint is required")
	}
	if hexDigits, ok := strings.CutPrefix(trimmed, "0x"); ok || len(trimmed) == 16 {
		raw, err := strconv.ParseUint(hexDigits, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid fingerprint %q: %w", value, err)
		}
		return int64(raw), nil
	}
	fp, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fingerprint %q: %w", value, err)
	}
	return fp, nil
}
