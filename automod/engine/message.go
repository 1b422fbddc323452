package engine

import (
	"fmt"
	"time"
)

// Points at a single chat message. Used for deletion side-effects and mod log links.
type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

func (ref MessageRef) URL() string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", ref.GuildID, ref.ChannelID, ref.MessageID)
}

type Author struct {
	ID       string
	Username string
	Bot      bool
}

// Formatted for display in announcements and log entries, eg "someone (123456)"
func (a Author) Tag() string {
	if a.Username == "" {
		return fmt.Sprintf("<@%s>", a.ID)
	}
	return fmt.Sprintf("%s (%s)", a.Username, a.ID)
}

type EmbedField struct {
	Name  string
	Value string
}

type Embed struct {
	Type         string
	Title        string
	Description  string
	URL          string
	ImageURL     string
	ThumbnailURL string
	Fields       []EmbedField
}

// Immutable view of an inbound chat message, decoupled from any gateway library types.
type Message struct {
	ID        string
	ChannelID string
	// empty for direct messages
	GuildID   string
	Author    Author
	WebhookID string
	Content   string
	CreatedAt time.Time
	// non-nil if this event is an edit of an existing message
	EditedAt *time.Time

	// role IDs held by the author, if the gateway included member info
	MemberRoles     []string
	MentionEveryone bool
	MentionRoles    []string
	MentionUsers    []string
	Attachments     int
	Embeds          []Embed
}

func (m *Message) Ref() MessageRef {
	return MessageRef{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
	}
}

// Key which partitions rule state: one subject per (guild, user) pair.
func (m *Message) SubjectKey() string {
	return SubjectKey(m.GuildID, m.Author.ID)
}

func SubjectKey(guildID, userID string) string {
	return guildID + "/" + userID
}

func (m *Message) HasRole(roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, r := range m.MemberRoles {
		if r == roleID {
			return true
		}
	}
	return false
}
