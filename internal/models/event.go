package models

import (
	"strings"
	"time"
)

type EventKind uint8

const (
	EventKindUnknown EventKind = iota
	EventKindMessageCreate
	EventKindMessageDelete
	EventKindMessageUpdate
	EventKindChannelDelete
	EventKindRoleUpdate
)

func (k EventKind) String() string {
	switch k {
	case EventKindMessageCreate:
		return "message_create"
	case EventKindMessageDelete:
		return "message_delete"
	case EventKindMessageUpdate:
		return "message_update"
	case EventKindChannelDelete:
		return "channel_delete"
	case EventKindRoleUpdate:
		return "role_update"
	default:
		return "unknown"
	}
}

type Attachment struct {
	Filename    string
	ContentType string
}

func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.ContentType, "image/")
}

// MessageEvent is a content-creation event.
type MessageEvent struct {
	GuildID     string
	ChannelID   string
	MessageID   string
	AuthorID    string
	AuthorName  string
	AuthorBot   bool
	Content     string
	Attachments []Attachment
	ChannelNSFW bool
	Timestamp   time.Time
}

func (e *MessageEvent) HasImage() bool {
	for _, a := range e.Attachments {
		if a.IsImage() {
			return true
		}
	}
	return false
}

type MessageDeleteEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	// Cached is nil when the message was not in the session state.
	Cached *MessageEvent
}

type MessageEditEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	Before    *MessageEvent
	After     MessageEvent
}

// ResourceDeleteEvent is emitted when a channel disappears. The deleting
// actor is not part of the event and has to be correlated from the audit log.
type ResourceDeleteEvent struct {
	GuildID    string
	ResourceID string
	Name       string
	Timestamp  time.Time
}

type PermissionChangeEvent struct {
	GuildID   string
	RoleID    string
	RoleName  string
	Before    int64
	After     int64
	Timestamp time.Time
}
