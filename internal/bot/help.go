package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

type helpCommand struct {
	name        string
	description string
	usage       string
	example     string
}

type helpCategory struct {
	key         string
	title       string
	description string
	commands    []helpCommand
}

var helpCategories = []helpCategory{
	{
		key:         "semantic_search",
		title:       "🔍 Semantic Search",
		description: "Save and search content using AI-powered semantic similarity",
		commands: []helpCommand{
			{"save", "Save content for semantic search with AI embeddings", "/save content:<your_content>", "/save content:How to set up a Discord bot"},
			{"search", "Search saved content by meaning, not just keywords", "/search query:<search_terms> [limit:<1-10>]", "/search query:meeting notes limit:3"},
			{"delete", "Delete your saved content by ID (only your own content)", "/delete content_id:<uuid>", "/delete content_id:123e4567-e89b-12d3-a456-426614174000"},
			{"edit", "Edit your saved content by ID (only your own content)", "/edit content_id:<uuid> new_content:<text>", "/edit content_id:123e4567-e89b-12d3-a456-426614174000 new_content:Updated notes"},
			{"my_content", "View all content you have saved in this server", "/my_content", "/my_content"},
		},
	},
	{
		key:         "watch_together",
		title:       "🎬 Watch Together",
		description: "Create shared Watch2gether rooms for your server",
		commands: []helpCommand{
			{"watch", "Create or get the server's Watch2gether room", "/watch [url:<room_url>]", "/watch"},
			{"watch-delete", "Delete your server's Watch2gether room from the bot", "/watch-delete", "/watch-delete"},
		},
	},
	{
		key:         "utility",
		title:       "🛠️ Utility",
		description: "Everything else",
		commands: []helpCommand{
			{"ask", "Ask the AI assistant a question", "/ask prompt:<question> [private:<true|false>]", "/ask prompt:Explain goroutines"},
			{"help", "Show this help", "/help [command:<name>]", "/help command:search"},
			{"ping", "Test if the bot is responding", "/ping", "/ping"},
		},
	},
}

func helpOverview(enabled map[string]bool) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       "🤖 Bot Help",
		Description: "Welcome to the Discord Bot with Semantic Search and Watch2gether features!",
		Color:       colorBlue,
		Footer:      footer("Use /help command:<name> for detailed examples and usage"),
	}
	for _, cat := range helpCategories {
		var names []string
		for _, c := range cat.commands {
			if enabled[c.name] {
				names = append(names, "`/"+c.name+"`")
			}
		}
		if len(names) == 0 {
			continue
		}
		e.Fields = append(e.Fields, field(
			cat.title,
			fmt.Sprintf("%s\n**Commands (%d):** %s", cat.description, len(names), strings.Join(names, ", ")),
			false,
		))
	}
	e.Fields = append(e.Fields, field("🚀 Quick Start",
		"1. **Save content**: `/save content:Your important notes`\n"+
			"2. **Search it later**: `/search query:important notes`\n"+
			"3. **Watch together**: `/watch` to create a room for your server",
		false))
	return e
}

func helpFor(name string) *discordgo.MessageEmbed {
	for _, cat := range helpCategories {
		for _, c := range cat.commands {
			if c.name != name {
				continue
			}
			return &discordgo.MessageEmbed{
				Title:       "/" + c.name,
				Description: c.description,
				Color:       colorGreen,
				Fields: []*discordgo.MessageEmbedField{
					field("Usage", "`"+c.usage+"`", false),
					field("Example", "`"+c.example+"`", false),
					field("Category", cat.title, true),
				},
			}
		}
	}
	return &discordgo.MessageEmbed{
		Title:       "❌ Command Not Found",
		Description: fmt.Sprintf("Command '%s' not found. Use `/help` to see all available commands.", name),
		Color:       colorRed,
	}
}
