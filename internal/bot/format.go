package bot

import (
	"fmt"
	"strings"

	contentmodel "discordbot/internal/content/model"
	roommodel "discordbot/internal/room/model"

	"github.com/bwmarrin/discordgo"
)

const (
	colorRed    = 0xE74C3C
	colorGreen  = 0x2ECC71
	colorBlue   = 0x3498DB
	colorYellow = 0xF1C40F
	colorOrange = 0xE67E22

	myContentShown = 10
)

// Reply is what a command handler produces; the session layer turns it into
// a follow-up message.
type Reply struct {
	Content string
	Embeds  []*discordgo.MessageEmbed
}

func embedReply(e *discordgo.MessageEmbed) Reply {
	return Reply{Embeds: []*discordgo.MessageEmbed{e}}
}

func field(name, value string, inline bool) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline}
}

func footer(text string) *discordgo.MessageEmbedFooter {
	return &discordgo.MessageEmbedFooter{Text: text}
}

func mention(userID string) string {
	return "<@" + userID + ">"
}

func failure(title, description string) Reply {
	return embedReply(&discordgo.MessageEmbed{Title: title, Description: description, Color: colorRed})
}

func savedEmbed(id, text string, warnings []string) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       "✅ Content Saved",
		Description: "Your content has been saved for semantic search!",
		Color:       colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			field("Content Preview", contentmodel.Preview(text), false),
			field("Content ID", "`"+id+"`", false),
		},
	}
	if len(warnings) > 0 {
		e.Fields = append(e.Fields, field("Note", strings.Join(warnings, "\n"), false))
	}
	return e
}

func searchEmbed(query string, matches []contentmodel.Match) *discordgo.MessageEmbed {
	if len(matches) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "🔍 No Results Found",
			Description: fmt.Sprintf("No content found similar to: **%s**", query),
			Color:       colorYellow,
			Fields:      []*discordgo.MessageEmbedField{field("Tip", "Try different keywords or save more content first!", false)},
		}
	}

	e := &discordgo.MessageEmbed{
		Title:       "🔍 Search Results",
		Description: fmt.Sprintf("Found %d results for: **%s**", len(matches), query),
		Color:       colorBlue,
		Footer:      footer(fmt.Sprintf("Showing top %d results • Use /delete <id> to remove your content", len(matches))),
	}
	for i, m := range matches {
		e.Fields = append(e.Fields, field(
			fmt.Sprintf("#%d - %.1f%% match", i+1, m.Percentage()),
			fmt.Sprintf("**Content:** %s\n**Saved by:** %s\n**ID:** `%s`", m.Content.Preview(), mention(m.Content.OwnerID), m.Content.ID),
			false,
		))
	}
	return e
}

func myContentEmbed(items []contentmodel.Content) *discordgo.MessageEmbed {
	if len(items) == 0 {
		return &discordgo.MessageEmbed{
			Title:       "📝 Your Content",
			Description: "You haven't saved any content yet. Use `/save` to get started!",
			Color:       colorYellow,
		}
	}

	e := &discordgo.MessageEmbed{
		Title:       "📝 Your Saved Content",
		Description: fmt.Sprintf("You have %d saved items", len(items)),
		Color:       colorBlue,
		Footer:      footer("Use /delete <id> to remove content • /edit <id> to modify content"),
	}
	for i, c := range items {
		if i == myContentShown {
			e.Footer = footer(fmt.Sprintf("Showing first %d of %d items • Use /search to find specific content", myContentShown, len(items)))
			break
		}
		e.Fields = append(e.Fields, field(
			fmt.Sprintf("#%d - Saved %s", i+1, c.CreatedAt.Format("2006-01-02")),
			fmt.Sprintf("**Content:** %s\n**ID:** `%s`", c.Preview(), c.ID),
			false,
		))
	}
	return e
}

func roomEmbed(res *roommodel.Result) *discordgo.MessageEmbed {
	r := res.Room
	if !res.Created {
		return &discordgo.MessageEmbed{
			Title:       "🎬 Watch2gether Room",
			Description: "Your server already has an active Watch2gether room!",
			Color:       colorBlue,
			Fields: []*discordgo.MessageEmbedField{
				field("Room URL", r.URL, false),
				field("Created", fmt.Sprintf("<t:%d:R>", r.CreatedAt.Unix()), true),
				field("Created by", mention(r.CreatedBy), true),
			},
			Footer: footer("Room expires 24 hours after creation"),
		}
	}

	e := &discordgo.MessageEmbed{
		Title:       "✅ Watch2gether Room Created",
		Description: "Your server's Watch2gether room is ready!",
		Color:       colorGreen,
	}
	if res.Renewed {
		e.Title = "🔄 Watch2gether Room Renewed"
		e.Description = "Your previous room was no longer available, so we created a fresh one!"
		e.Color = colorOrange
	}
	e.Fields = []*discordgo.MessageEmbedField{
		field("Room URL", r.URL, false),
		field("Duration", "24 hours", true),
		field("Created by", mention(r.CreatedBy), true),
	}
	e.Footer = footer("Share this room URL with your server members!")
	return e
}

func roomDeletedEmbed(r *roommodel.Room) *discordgo.MessageEmbed {
	if r == nil {
		return &discordgo.MessageEmbed{
			Title:       "ℹ️ No Room Found",
			Description: "Your server doesn't have an active Watch2gether room to delete.",
			Color:       colorBlue,
		}
	}
	return &discordgo.MessageEmbed{
		Title:       "🗑️ Room Deleted",
		Description: "Your server's Watch2gether room has been removed from the bot.\n\nYou can now use `/watch` to create a fresh room!",
		Color:       colorGreen,
		Fields: []*discordgo.MessageEmbedField{
			field("Deleted Room", r.URL, false),
			field("Originally Created", fmt.Sprintf("<t:%d:R>", r.CreatedAt.Unix()), true),
			field("Originally Created by", mention(r.CreatedBy), true),
		},
	}
}
