// Package models holds the worker registry domain types shared by the
// validator, dedup index, durable store and hub.
package models

import (
	"strconv"
	"strings"
)

// Level is the severity attached to a worker record.
type Level string

const (
	LevelCritical Level = "critical"
	LevelHigh     Level = "high"
	LevelMedium   Level = "medium"
	LevelLow      Level = "low"
)

// IsValid checks if the level is one of the supported enum values.
func (l Level) IsValid() bool {
	switch l {
	case LevelCritical, LevelHigh, LevelMedium, LevelLow:
		return true
	}
	return false
}

// ParseLevel maps free-form input onto the level enum. Unknown or empty
// values become LevelLow.
func ParseLevel(s string) Level {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l.IsValid() {
		return l
	}
	return LevelLow
}

// String returns the string representation.
func (l Level) String() string {
	return string(l)
}

// Worker is a sanitized registry record. Values of this type are only
// produced by the validator or by loading a snapshot back through it.
type Worker struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Level   Level   `json:"level"`
}

// Key returns the canonical identity of the record. Level does not take part
// in identity: the same name at the same address is one entity.
func (w Worker) Key() string {
	return CanonicalKey(w.Name, w.Address)
}

// CanonicalKey builds the identity string from already normalized fields.
// The name is length-prefixed so no pair of fields can collide with another.
func CanonicalKey(name, address string) string {
	name = strings.ToLower(name)
	return strconv.Itoa(len(name)) + ":" + name + "|" + strings.ToLower(address)
}

// RawWorker is the loosely typed payload a connection submits. Every field is
// left as decoded so the validator can coerce or reject it.
type RawWorker struct {
	Name    any `json:"name"`
	Address any `json:"address"`
	Lat     any `json:"lat"`
	Lng     any `json:"lng"`
	Level   any `json:"level"`
}

// Clone returns a copy of the slice so callers can hand snapshots across
// goroutines without sharing the backing array.
func Clone(workers []Worker) []Worker {
	if workers == nil {
		return []Worker{}
	}
	out := make([]Worker, len(workers))
	copy(out, workers)
	return out
}
