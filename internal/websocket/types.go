package websocket

import (
	"time"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeDocument is emitted after each document is pseudonymized.
	EventTypeDocument EventType = "document_processed"
	// EventTypeSession is emitted on session creation and closure.
	EventTypeSession EventType = "session"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// DocumentEvent summarizes one processed document. It carries counts only;
// document content and pseudonyms never leave the core through this feed.
type DocumentEvent struct {
	SessionID        string  `json:"session_id"`
	EntityCount      int     `json:"entity_count"`
	ReplacementCount int     `json:"replacement_count"`
	MeanConfidence   float64 `json:"mean_confidence"`
	ProcessingMS     float64 `json:"processing_ms"`
	PatternOnly      bool    `json:"pattern_only"`
}

// SessionEvent reports session lifecycle changes.
type SessionEvent struct {
	Action    string `json:"action"` // "created", "closed"
	SessionID string `json:"session_id"`
	Mappings  int    `json:"mappings,omitempty"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalDocuments   int64  `json:"total_documents"`
	ActiveSessions   int    `json:"active_sessions"`
	ActiveRules      int    `json:"active_rules"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
	ClientIP string `json:"client_ip"`
	Message  string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *gorillaConn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
}
