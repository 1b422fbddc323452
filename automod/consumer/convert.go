package consumer

import (
	"github.com/sleetbot/warden/automod/engine"

	"github.com/bwmarrin/discordgo"
)

// Converts a gateway message into the engine's library-independent view.
func ConvertMessage(m *discordgo.Message) *engine.Message {
	msg := &engine.Message{
		ID:              m.ID,
		ChannelID:       m.ChannelID,
		GuildID:         m.GuildID,
		WebhookID:       m.WebhookID,
		Content:         m.Content,
		CreatedAt:       m.Timestamp,
		EditedAt:        m.EditedTimestamp,
		MentionEveryone: m.MentionEveryone,
		MentionRoles:    m.MentionRoles,
		Attachments:     len(m.Attachments),
	}
	if m.Author != nil {
		msg.Author = engine.Author{
			ID:       m.Author.ID,
			Username: m.Author.Username,
			Bot:      m.Author.Bot,
		}
	}
	if m.Member != nil {
		msg.MemberRoles = m.Member.Roles
	}
	for _, u := range m.Mentions {
		if u != nil {
			msg.MentionUsers = append(msg.MentionUsers, u.ID)
		}
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		msg.Embeds = append(msg.Embeds, convertEmbed(e))
	}
	return msg
}

func convertEmbed(e *discordgo.MessageEmbed) engine.Embed {
	out := engine.Embed{
		Type:        string(e.Type),
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
	}
	if e.Image != nil {
		out.ImageURL = e.Image.URL
	}
	if e.Thumbnail != nil {
		out.ThumbnailURL = e.Thumbnail.URL
	}
	for _, f := range e.Fields {
		if f != nil {
			out.Fields = append(out.Fields, engine.EmbedField{Name: f.Name, Value: f.Value})
		}
	}
	return out
}
