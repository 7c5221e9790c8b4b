package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventFetchStart   EventType = "fetch_start"
	EventFetchDone    EventType = "fetch_done"
	EventCoalesced    EventType = "coalesced"
	EventDiscard      EventType = "discard"
	EventEvict        EventType = "evict"
	EventStatusChange EventType = "status_change"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// CacheEvent describes something that happened to a cache entry.
type CacheEvent struct {
	EventBase
	Cache      string        `json:"cache"`
	Key        string        `json:"key"`
	Generation uint64        `json:"generation"`
	Duration   time.Duration `json:"duration,omitempty"` // EventFetchDone and EventDiscard only
	Err        error         `json:"-"`
}

// StatusChangeEvent describes a transition of a viewer's reduced status.
type StatusChangeEvent struct {
	EventBase
	SessionID string       `json:"session_id,omitempty"`
	From      ViewerStatus `json:"from"`
	To        ViewerStatus `json:"to"`
}

// LifecycleHooks defines callbacks for observability.
type LifecycleHooks struct {
	OnFetchStart   func(context.Context, *CacheEvent)
	OnFetchDone    func(context.Context, *CacheEvent)
	OnCoalesced    func(context.Context, *CacheEvent)
	OnDiscard      func(context.Context, *CacheEvent)
	OnEvict        func(context.Context, *CacheEvent)
	OnStatusChange func(context.Context, *StatusChangeEvent)
}
