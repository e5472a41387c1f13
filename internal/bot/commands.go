package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"discordbot/internal/apperr"
	contentmodel "discordbot/internal/content/model"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

const (
	defaultSearchLimit = 5
	minSearchLimit     = 1
	maxSearchLimit     = 10

	guildOnlyMessage = "This command can only be used in servers."
)

// Invocation is a slash command with its options already decoded.
type Invocation struct {
	Command string
	UserID  string
	GuildID string
	Options map[string]any
}

func (inv Invocation) String(name string) string {
	s, _ := inv.Options[name].(string)
	return s
}

func (inv Invocation) Int(name string, def int) int {
	if v, ok := inv.Options[name].(int64); ok {
		return int(v)
	}
	return def
}

func (inv Invocation) Bool(name string, def bool) bool {
	if v, ok := inv.Options[name].(bool); ok {
		return v
	}
	return def
}

type handlerFunc func(ctx context.Context, b *Bot, inv Invocation) Reply

type command struct {
	def       *discordgo.ApplicationCommand
	guildOnly bool
	// private decides whether the deferred response is ephemeral.
	private func(inv Invocation) bool
	handle  handlerFunc
}

func public(Invocation) bool { return false }

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

// commandTable lists every command the bot serves. /ask is only present
// when an assistant is configured.
func commandTable(withAsk bool) map[string]command {
	table := map[string]command{
		"save": {
			def: &discordgo.ApplicationCommand{
				Name:        "save",
				Description: "Save content for semantic search",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "content",
					Description: "Content to save for later searching",
					Required:    true,
					MinLength:   intPtr(contentmodel.MinContentLength),
					MaxLength:   contentmodel.MaxContentLength,
				}},
			},
			guildOnly: true,
			private:   public,
			handle:    handleSave,
		},
		"search": {
			def: &discordgo.ApplicationCommand{
				Name:        "search",
				Description: "Search saved content semantically",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "query",
						Description: "What are you looking for?",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "limit",
						Description: "Number of results (1-10)",
						MinValue:    floatPtr(minSearchLimit),
						MaxValue:    maxSearchLimit,
					},
				},
			},
			guildOnly: true,
			private:   public,
			handle:    handleSearch,
		},
		"delete": {
			def: &discordgo.ApplicationCommand{
				Name:        "delete",
				Description: "Delete your saved content",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "content_id",
					Description: "ID of content to delete (from search results)",
					Required:    true,
				}},
			},
			guildOnly: true,
			private:   public,
			handle:    handleDelete,
		},
		"edit": {
			def: &discordgo.ApplicationCommand{
				Name:        "edit",
				Description: "Edit your saved content",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "content_id",
						Description: "ID of content to edit (from search results)",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "new_content",
						Description: "New content to replace the old content",
						Required:    true,
						MinLength:   intPtr(contentmodel.MinContentLength),
						MaxLength:   contentmodel.MaxContentLength,
					},
				},
			},
			guildOnly: true,
			private:   public,
			handle:    handleEdit,
		},
		"my_content": {
			def: &discordgo.ApplicationCommand{
				Name:        "my_content",
				Description: "View all your saved content",
			},
			guildOnly: true,
			private:   public,
			handle:    handleMyContent,
		},
		"watch": {
			def: &discordgo.ApplicationCommand{
				Name:        "watch",
				Description: "Create or get Watch2gether room for the server",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "url",
					Description: "Use this room URL instead of creating a new one",
				}},
			},
			guildOnly: true,
			private:   public,
			handle:    handleWatch,
		},
		"watch-delete": {
			def: &discordgo.ApplicationCommand{
				Name:        "watch-delete",
				Description: "Delete your server's Watch2gether room from the bot",
			},
			guildOnly: true,
			private:   public,
			handle:    handleWatchDelete,
		},
		"help": {
			def: &discordgo.ApplicationCommand{
				Name:        "help",
				Description: "Show available commands and how to use them",
				Options: []*discordgo.ApplicationCommandOption{{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "command",
					Description: "Specific command to get help with (optional)",
				}},
			},
			private: public,
			handle:  handleHelp,
		},
		"ping": {
			def: &discordgo.ApplicationCommand{
				Name:        "ping",
				Description: "Test if the bot is responding",
			},
			private: public,
			handle: func(context.Context, *Bot, Invocation) Reply {
				return Reply{Content: "🏓 Pong! Bot is working!"}
			},
		},
	}

	if withAsk {
		table["ask"] = command{
			def: &discordgo.ApplicationCommand{
				Name:        "ask",
				Description: "Ask the AI assistant a question",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "prompt",
						Description: "Your question or instruction",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "private",
						Description: "Send the response privately (ephemeral)",
					},
				},
			},
			private: func(inv Invocation) bool { return inv.Bool("private", true) },
			handle:  handleAsk,
		}
	}
	return table
}

func handleSave(ctx context.Context, b *Bot, inv Invocation) Reply {
	text := inv.String("content")
	id, err := b.content.Save(ctx, inv.UserID, inv.GuildID, text)
	if err != nil {
		return b.errorReply("❌ Save Failed", inv, err)
	}
	return embedReply(savedEmbed(id, strings.TrimSpace(text), contentmodel.ValidateText(text).Warnings))
}

func handleSearch(ctx context.Context, b *Bot, inv Invocation) Reply {
	query := inv.String("query")
	limit := inv.Int("limit", defaultSearchLimit)
	if limit < minSearchLimit || limit > maxSearchLimit {
		return failure("❌ Search Failed", fmt.Sprintf("Limit must be between %d and %d.", minSearchLimit, maxSearchLimit))
	}

	matches, err := b.content.Search(ctx, inv.GuildID, query, limit)
	if err != nil {
		return b.errorReply("❌ Search Failed", inv, err)
	}
	return embedReply(searchEmbed(query, matches))
}

func handleDelete(ctx context.Context, b *Bot, inv Invocation) Reply {
	id := strings.TrimSpace(inv.String("content_id"))
	if !validID(id) {
		return failure("❌ Invalid ID", "Please provide a valid content ID from search results.")
	}
	if err := b.content.Delete(ctx, inv.UserID, id); err != nil {
		return b.errorReply("❌ Delete Failed", inv, err)
	}
	return embedReply(&discordgo.MessageEmbed{
		Title:       "✅ Content Deleted",
		Description: "Content deleted successfully.",
		Color:       colorGreen,
		Fields:      []*discordgo.MessageEmbedField{field("Content ID", "`"+id+"`", false)},
	})
}

func handleEdit(ctx context.Context, b *Bot, inv Invocation) Reply {
	id := strings.TrimSpace(inv.String("content_id"))
	if !validID(id) {
		return failure("❌ Invalid ID", "Please provide a valid content ID from search results.")
	}
	updated, err := b.content.Edit(ctx, inv.UserID, id, inv.String("new_content"))
	if err != nil {
		return b.errorReply("❌ Edit Failed", inv, err)
	}
	return embedReply(&discordgo.MessageEmbed{
		Title:       "✅ Content Updated",
		Description: "Content updated successfully.",
		Color:       colorGreen,
		Fields:      []*discordgo.MessageEmbedField{field("New Content Preview", updated.Preview(), false)},
	})
}

func handleMyContent(ctx context.Context, b *Bot, inv Invocation) Reply {
	items, err := b.content.ListMine(ctx, inv.UserID, inv.GuildID)
	if err != nil {
		return b.errorReply("❌ Content Retrieval Error", inv, err)
	}
	return embedReply(myContentEmbed(items))
}

func handleWatch(ctx context.Context, b *Bot, inv Invocation) Reply {
	res, err := b.rooms.GetOrCreate(ctx, inv.GuildID, inv.UserID, inv.String("url"))
	if errors.Is(err, apperr.ErrRoomCreation) {
		b.log.Errorf("Room creation failed for guild %s: %v", inv.GuildID, err)
		return failure("❌ Room Creation Failed", "Failed to create Watch2gether room. Please try again later.")
	}
	if err != nil {
		return b.errorReply("❌ Unexpected Error", inv, err)
	}
	return embedReply(roomEmbed(res))
}

func handleWatchDelete(ctx context.Context, b *Bot, inv Invocation) Reply {
	removed, err := b.rooms.Delete(ctx, inv.GuildID)
	if err != nil {
		return b.errorReply("❌ Deletion Failed", inv, err)
	}
	return embedReply(roomDeletedEmbed(removed))
}

func handleAsk(ctx context.Context, b *Bot, inv Invocation) Reply {
	answer, err := b.asker.Ask(ctx, inv.String("prompt"))
	if err != nil {
		return b.errorReply("❌ Ask Failed", inv, err)
	}
	return Reply{Content: answer}
}

func handleHelp(_ context.Context, b *Bot, inv Invocation) Reply {
	if name := strings.TrimPrefix(strings.TrimSpace(inv.String("command")), "/"); name != "" {
		return embedReply(helpFor(name))
	}
	enabled := make(map[string]bool, len(b.commands))
	for name := range b.commands {
		enabled[name] = true
	}
	return embedReply(helpOverview(enabled))
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
