package models

import (
	"fmt"
	"time"
)

// WatermarkKind selects one of the two per-viewer notification watermarks.
type WatermarkKind string

const (
	// WatermarkLastVisit moves whenever the viewer opens the notifications page.
	WatermarkLastVisit WatermarkKind = "last_visit"
	// WatermarkLastClear moves only on an explicit "clear all".
	WatermarkLastClear WatermarkKind = "last_clear"
)

// ParseWatermarkKind accepts the stored names plus the camelCase and short forms used by
// the admin CLI.
func ParseWatermarkKind(s string) (WatermarkKind, error) {
	switch WatermarkKind(s) {
	case WatermarkLastVisit, WatermarkLastClear:
		return WatermarkKind(s), nil
	case "lastVisit", "visit":
		return WatermarkLastVisit, nil
	case "lastClear", "clear":
		return WatermarkLastClear, nil
	default:
		return "", fmt.Errorf("unknown watermark kind %q", s)
	}
}

// StorageKey renders the persisted key, e.g. lastVisit_admin_42.
func (k WatermarkKind) StorageKey(role, userID string) string {
	prefix := "lastVisit"
	if k == WatermarkLastClear {
		prefix = "lastClear"
	}
	return fmt.Sprintf("%s_%s_%s", prefix, role, userID)
}

// NotificationWatermark is one stored watermark.
type NotificationWatermark struct {
	Role   string        `json:"role"`
	UserID string        `json:"userId"`
	Kind   WatermarkKind `json:"kind"`
	At     time.Time     `json:"at"`
}
