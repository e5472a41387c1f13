// Package bot connects the services to Discord slash commands.
package bot

import (
	"context"
	"errors"
	"sort"
	"time"

	"discordbot/internal/apperr"
	contentmodel "discordbot/internal/content/model"
	roommodel "discordbot/internal/room/model"
	"discordbot/pkg/logger"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const commandTimeout = 30 * time.Second

type ContentService interface {
	Save(ctx context.Context, ownerID, serverID, text string) (string, error)
	Search(ctx context.Context, serverID, query string, limit int) ([]contentmodel.Match, error)
	Edit(ctx context.Context, requesterID, contentID, newText string) (*contentmodel.Content, error)
	Delete(ctx context.Context, requesterID, contentID string) error
	ListMine(ctx context.Context, ownerID, serverID string) ([]contentmodel.Content, error)
}

type RoomService interface {
	GetOrCreate(ctx context.Context, serverID, requesterID, url string) (*roommodel.Result, error)
	Delete(ctx context.Context, serverID string) (*roommodel.Room, error)
}

type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

type Bot struct {
	session  *discordgo.Session
	content  ContentService
	rooms    RoomService
	asker    Asker
	guildID  string
	commands map[string]command
	log      *zap.SugaredLogger

	baseCtx context.Context
}

// New builds the bot without connecting. asker may be nil, which leaves
// /ask unregistered.
func New(token, guildID string, content ContentService, rooms RoomService, asker Asker, log *zap.SugaredLogger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	return newBot(session, guildID, content, rooms, asker, log), nil
}

func newBot(session *discordgo.Session, guildID string, content ContentService, rooms RoomService, asker Asker, log *zap.SugaredLogger) *Bot {
	return &Bot{
		session:  session,
		content:  content,
		rooms:    rooms,
		asker:    asker,
		guildID:  guildID,
		commands: commandTable(asker != nil),
		log:      log,
		baseCtx:  context.Background(),
	}
}

// Run opens the gateway connection and serves interactions until ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.baseCtx = ctx
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)

	if err := b.session.Open(); err != nil {
		return err
	}
	defer b.session.Close()

	<-ctx.Done()
	b.log.Info("Shutting down Discord session")
	return nil
}

// Definitions returns the application commands in a stable order.
func (b *Bot) Definitions() []*discordgo.ApplicationCommand {
	names := make([]string, 0, len(b.commands))
	for name := range b.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]*discordgo.ApplicationCommand, 0, len(names))
	for _, name := range names {
		defs = append(defs, b.commands[name].def)
	}
	return defs
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Infof("Logged in as %s#%s in %d guilds", r.User.Username, r.User.Discriminator, len(r.Guilds))

	registered, err := s.ApplicationCommandBulkOverwrite(r.User.ID, b.guildID, b.Definitions())
	if err != nil {
		b.log.Errorf("Failed to register slash commands: %v", err)
		return
	}
	scope := "globally"
	if b.guildID != "" {
		scope = "for guild " + b.guildID
	}
	b.log.Infof("Registered %d slash commands %s", len(registered), scope)
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	inv := invocationFrom(i)
	cmd, ok := b.commands[inv.Command]
	if !ok {
		b.log.Warnf("Unknown command %q", inv.Command)
		return
	}

	var flags discordgo.MessageFlags
	if cmd.private(inv) {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
	if err != nil {
		b.log.Warnf("Failed to defer interaction for user %s: %v", inv.UserID, err)
		return
	}

	ctx, cancel := context.WithTimeout(b.baseCtx, commandTimeout)
	defer cancel()
	reply := b.Dispatch(ctx, inv)

	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: reply.Content,
		Embeds:  reply.Embeds,
		Flags:   flags,
	})
	if err != nil {
		b.log.Errorf("Failed to send reply for /%s: %v", inv.Command, err)
	}
}

// Dispatch runs one command and returns its reply. It never fails; errors
// are rendered into the reply.
func (b *Bot) Dispatch(ctx context.Context, inv Invocation) Reply {
	start := time.Now()
	logger.Interaction(b.log, inv.UserID, inv.GuildID, inv.Command)

	cmd, ok := b.commands[inv.Command]
	if !ok {
		return failure("❌ Unknown Command", "That command is not available.")
	}
	if cmd.guildOnly && inv.GuildID == "" {
		return Reply{Content: guildOnlyMessage}
	}

	reply := cmd.handle(ctx, b, inv)
	logger.Performance(b.log, inv.Command+"_command_total", time.Since(start))
	return reply
}

// errorReply logs failures the user cannot fix and renders any error as a
// red embed.
func (b *Bot) errorReply(title string, inv Invocation, err error) Reply {
	if !errors.Is(err, apperr.ErrValidation) && !errors.Is(err, apperr.ErrPermission) && !errors.Is(err, apperr.ErrNotFound) {
		b.log.Errorw("command failed", "command", inv.Command, "user_id", inv.UserID, "server_id", inv.GuildID, "error", err)
	}
	return failure(title, apperr.UserMessage(err))
}

func invocationFrom(i *discordgo.InteractionCreate) Invocation {
	data := i.ApplicationCommandData()
	inv := Invocation{
		Command: data.Name,
		GuildID: i.GuildID,
		Options: make(map[string]any, len(data.Options)),
	}
	if i.Member != nil && i.Member.User != nil {
		inv.UserID = i.Member.User.ID
	} else if i.User != nil {
		inv.UserID = i.User.ID
	}

	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			inv.Options[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			inv.Options[opt.Name] = opt.IntValue()
		case discordgo.ApplicationCommandOptionBoolean:
			inv.Options[opt.Name] = opt.BoolValue()
		}
	}
	return inv
}
