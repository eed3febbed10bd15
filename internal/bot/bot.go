// Package bot is the Discord-facing surface: it owns the gateway
// session, registers the slash command and routes every interaction
// through the flow controller. All wire-level rendering lives in ui.go
// so the handlers here stay close to the interaction protocol.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/kalambet/meetsum/internal/audit"
	"github.com/kalambet/meetsum/internal/flow"
	"github.com/kalambet/meetsum/internal/permissions"
)

const commandName = "summarize"

// Bot wires one gateway session to the summarization flow.
type Bot struct {
	session *discordgo.Session
	flow    *flow.Controller
	gate    *permissions.Gate
	audit   *audit.Recorder

	guildID string
}

// New prepares the bot on an unopened session. Start opens the gateway.
func New(session *discordgo.Session, ctl *flow.Controller, gate *permissions.Gate, rec *audit.Recorder, guildID string) *Bot {
	b := &Bot{
		session: session,
		flow:    ctl,
		gate:    gate,
		audit:   rec,
		guildID: guildID,
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteraction)
	return b
}

// Start opens the gateway connection and blocks until ctx is canceled,
// then closes the session.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	if err := b.registerCommands(); err != nil {
		b.session.Close()
		return err
	}
	logrus.WithField("guild_id", b.guildID).Info("bot is up")
	b.audit.Record("bot_started", "")

	<-ctx.Done()
	b.audit.Record("bot_stopping", "")
	return b.session.Close()
}

func (b *Bot) registerCommands() error {
	return RegisterCommands(b.session, b.session.State.User.ID, b.guildID)
}

// RegisterCommands creates the guild-scoped slash command. It is a
// plain REST call and works on an unopened session.
func RegisterCommands(s *discordgo.Session, appID, guildID string) error {
	cmd := &discordgo.ApplicationCommand{
		Name:        commandName,
		Description: "Pick a meeting recording and get a summary posted to this channel",
	}
	if _, err := s.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
		return fmt.Errorf("register /%s: %w", commandName, err)
	}
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	logrus.WithField("bot_user", s.State.User.String()).Info("gateway ready")
	if err := s.UpdateListeningStatus("/" + commandName); err != nil {
		logrus.WithError(err).Warn("cannot set presence")
	}
}

// onInteraction dispatches slash commands and component clicks. Every
// branch answers the interaction; Discord marks it failed otherwise.
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == commandName {
			b.handleSummarize(s, i)
		}
	case discordgo.InteractionMessageComponent:
		switch i.MessageComponentData().CustomID {
		case customIDFileSelect:
			b.handleFileSelect(s, i)
		case customIDRefresh:
			b.handleRefresh(s, i)
		case customIDCancel:
			b.handleCancel(s, i)
		}
	}
}

func (b *Bot) handleSummarize(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	log := logrus.WithFields(logrus.Fields{
		"user_id":    user.ID,
		"channel_id": i.ChannelID,
	})

	if !b.allowed(i) {
		respond(s, i, &discordgo.InteractionResponseData{
			Content: "You do not have permission to use this command.",
			Flags:   discordgo.MessageFlagsEphemeral,
		})
		log.Warn("command rejected by role gate")
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		log.WithError(err).Error("cannot defer interaction")
		return
	}

	b.audit.Record("summarize_invoked", "user="+user.ID)
	b.sendFileMenu(s, i, user, false)
}

// sendFileMenu lists the catalog and edits the deferred response into
// the selection view. Shared by the initial command and the refresh
// button.
func (b *Bot) sendFileMenu(s *discordgo.Session, i *discordgo.InteractionCreate, user *discordgo.User, refreshed bool) {
	ctx := context.Background()
	files, err := b.flow.ListFiles(ctx)
	if err != nil {
		logrus.WithError(err).Error("cannot list files")
		editText(s, i, catalogUserMessage(err))
		return
	}
	if len(files) == 0 {
		editText(s, i, noFilesMessage)
		return
	}

	embed, components := fileSelectView(files, user.String(), user.AvatarURL(""), refreshed)
	_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &components,
	})
	if err != nil {
		logrus.WithError(err).Error("cannot show file menu")
	}
}

func (b *Bot) handleFileSelect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		respondUpdate(s, i, "No file selected.")
		return
	}
	fileID := values[0]

	log := logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"file_id": fileID,
	})

	// Acknowledge immediately and strip the menu so a double click
	// cannot start two jobs.
	respondUpdate(s, i, "Checking the selected file...")

	ctx := context.Background()
	file, err := b.flow.CheckFile(ctx, fileID)
	if err != nil {
		var tooLarge *flow.ErrFileTooLarge
		if errors.As(err, &tooLarge) {
			log.WithField("size", tooLarge.File.Size).Warn("file over the size limit")
			editText(s, i, fmt.Sprintf("**%s** is %s, which is over the 125 MB limit. Pick a smaller recording.",
				tooLarge.File.Name, tooLarge.File.Size))
			return
		}
		log.WithError(err).Error("cannot fetch selected file")
		editText(s, i, catalogUserMessage(err))
		return
	}

	tag, avatar := user.String(), user.AvatarURL("")
	editEmbed(s, i, confirmEmbed(file, tag, avatar))
	editEmbed(s, i, inProgressEmbed(file, tag, avatar))

	req := flow.Requester{
		ChannelID: i.ChannelID,
		UserID:    user.ID,
		UserName:  user.String(),
		AvatarURL: user.AvatarURL(""),
	}

	b.audit.Record("summary_requested", fmt.Sprintf("user=%s file=%s size=%s", user.ID, file.ID, file.Size))

	// The workflow engine can take many minutes, well past the
	// interaction token lifetime. Run it off the gateway goroutine and
	// treat a failed final edit as cosmetic.
	go func() {
		if err := b.flow.Summarize(context.Background(), file, req); err != nil {
			log.WithError(err).Error("summarization failed")
			editEmbed(s, i, failureEmbed(file.Name, err.Error(), tag, avatar))
			return
		}
		log.Info("summary delivered")
		editEmbed(s, i, handedOffEmbed(file, tag, avatar))
	}()
}

func (b *Bot) handleRefresh(s *discordgo.Session, i *discordgo.InteractionCreate) {
	respondUpdate(s, i, "Refreshing the file list...")
	b.sendFileMenu(s, i, interactionUser(i), true)
}

func (b *Bot) handleCancel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	respondUpdate(s, i, "Canceled. Run /"+commandName+" again whenever you are ready.")
}

// allowed checks the role gate against the invoking member. Interactions
// outside a guild carry no member and are rejected unless the gate is
// open.
func (b *Bot) allowed(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return b.gate.Open()
	}
	isAdmin := i.Member.Permissions&discordgo.PermissionAdministrator != 0
	return b.gate.IsAllowed(isAdmin, i.Member.Roles)
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// respond answers an interaction with a fresh message.
func respond(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		logrus.WithError(err).Error("cannot respond to interaction")
	}
}

// respondUpdate replaces the component message in place, dropping its
// embeds and components.
func respondUpdate(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Embeds:     []*discordgo.MessageEmbed{},
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		logrus.WithError(err).Error("cannot update interaction message")
	}
}

func editText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	empty := []*discordgo.MessageEmbed{}
	noComponents := []discordgo.MessageComponent{}
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &empty,
		Components: &noComponents,
	})
	if err != nil {
		logrus.WithError(err).Error("cannot edit interaction response")
	}
}

func editEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	content := ""
	noComponents := []discordgo.MessageComponent{}
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &[]*discordgo.MessageEmbed{embed},
		Components: &noComponents,
	})
	if err != nil {
		logrus.WithError(err).Error("cannot edit interaction response")
	}
}
