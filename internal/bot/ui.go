package bot

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/kalambet/meetsum/internal/catalog"
)

const (
	// Discord caps a select menu at 25 options.
	maxMenuEntries = 25

	maxLabelLength       = 80
	maxDescriptionLength = 100
)

const (
	colorSelection  = 0x5865f2
	colorConfirm    = 0x00ff00
	colorInProgress = 0x3498db
	colorHandedOff  = 0x28a745
	colorFailure    = 0xff0000
)

const (
	customIDFileSelect = "file_select"
	customIDRefresh    = "refresh_files"
	customIDCancel     = "cancel_summary"
)

// fileSelectView builds the selection embed and components for the given
// candidates. Only the first 25 files are offered.
func fileSelectView(files []catalog.FileSummary, requesterTag, requesterAvatar string, refreshed bool) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	display := files
	if len(display) > maxMenuEntries {
		display = display[:maxMenuEntries]
	}

	title := "Pick a meeting recording to summarize"
	if refreshed {
		title += " (refreshed)"
	}

	countNote := "showing every file found"
	if len(files) > maxMenuEntries {
		countNote = fmt.Sprintf("showing the %d most recent (menu limit)", maxMenuEntries)
	}

	embed := &discordgo.MessageEmbed{
		Color:       colorSelection,
		Title:       title,
		Description: "Pick a file from the menu below. Processing can take several minutes depending on file size.",
		Fields: []*discordgo.MessageEmbedField{
			{Name: fmt.Sprintf("Files found: %d", len(files)), Value: countNote},
			{Name: "Tips", Value: "• pick a supported audio/video file\n• files over 125 MB are rejected"},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text:    "Requested by " + requesterTag,
			IconURL: requesterAvatar,
		},
	}

	options := make([]discordgo.SelectMenuOption, len(display))
	for i, f := range display {
		options[i] = discordgo.SelectMenuOption{
			Label:       truncateLabel(f.Name),
			Value:       f.ID,
			Description: optionDescription(f),
			Emoji:       fileEmoji(f.MimeType),
		}
	}

	menu := discordgo.SelectMenu{
		CustomID:    customIDFileSelect,
		Placeholder: "Pick a meeting recording",
		Options:     options,
	}

	refresh := discordgo.Button{
		CustomID: customIDRefresh,
		Label:    "Refresh",
		Style:    discordgo.PrimaryButton,
	}
	cancel := discordgo.Button{
		CustomID: customIDCancel,
		Label:    "Cancel",
		Style:    discordgo.SecondaryButton,
	}

	return embed, []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{refresh, cancel}},
	}
}

func truncateLabel(name string) string {
	if len(name) <= maxLabelLength {
		return name
	}
	return clip(name, maxLabelLength-3) + "..."
}

func optionDescription(f catalog.FileSummary) string {
	desc := fmt.Sprintf("%s • %s • %s", f.TypeLabel, f.Size, f.ModifiedDate)
	if !catalog.IsSizeValid(f.SizeBytes) {
		desc = fmt.Sprintf("⚠ over 125 MB • %s", f.Size)
	}
	return clip(desc, maxDescriptionLength)
}

// clip hard-caps s at limit bytes without splitting a rune. File names
// are routinely non-ASCII, so a byte slice alone would leave a mangled
// trailing sequence.
func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

func fileEmoji(mimeType string) *discordgo.ComponentEmoji {
	name := "🎵"
	if len(mimeType) >= 5 && mimeType[:5] == "video" {
		name = "🎥"
	}
	return &discordgo.ComponentEmoji{Name: name}
}

func confirmEmbed(f catalog.FileSummary, requesterTag, requesterAvatar string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color:       colorConfirm,
		Title:       "File ready for processing",
		Description: fmt.Sprintf("You picked **%s**.", f.Name),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Size", Value: f.Size, Inline: true},
			{Name: "Type", Value: f.TypeLabel, Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text:    "Requested by " + requesterTag,
			IconURL: requesterAvatar,
		},
	}
}

// inProgressEmbed announces the job hand-off with a size-based estimate:
// roughly a minute of processing per 3 MB, never under three minutes.
func inProgressEmbed(f catalog.FileSummary, requesterTag, requesterAvatar string) *discordgo.MessageEmbed {
	sizeMB := float64(f.SizeBytes) / (1 << 20)
	minutes := int(math.Ceil(sizeMB / 3))
	if minutes < 3 {
		minutes = 3
	}

	return &discordgo.MessageEmbed{
		Color:       colorInProgress,
		Title:       "Processing started",
		Description: fmt.Sprintf("File: **%s**\nSize: **%.1f MB**", f.Name, sizeMB),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Estimated time", Value: fmt.Sprintf("%d-%d minutes", minutes, minutes+2), Inline: true},
			{Name: "Status", Value: "sending request...", Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text:    requesterTag + "'s file • the summary will arrive as new messages",
			IconURL: requesterAvatar,
		},
	}
}

func handedOffEmbed(f catalog.FileSummary, requesterTag, requesterAvatar string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color:       colorHandedOff,
		Title:       "Processing request succeeded",
		Description: fmt.Sprintf("Processing of **%s** has finished; the summary has been posted to this channel.", f.Name),
		Footer: &discordgo.MessageEmbedFooter{
			Text:    requesterTag + "'s file",
			IconURL: requesterAvatar,
		},
	}
}

func failureEmbed(fileName, reason, requesterTag, requesterAvatar string) *discordgo.MessageEmbed {
	if reason == "" {
		reason = "unknown error"
	}
	return &discordgo.MessageEmbed{
		Color:       colorFailure,
		Title:       "Failed to submit file for processing",
		Description: fmt.Sprintf("Could not process **%s**\n**Reason:** %s", fileName, reason),
		Footer: &discordgo.MessageEmbedFooter{
			Text:    requesterTag + "'s file",
			IconURL: requesterAvatar,
		},
	}
}

// catalogUserMessage maps a catalog failure onto its user-facing message.
func catalogUserMessage(err error) string {
	switch catalog.KindOf(err) {
	case catalog.NotFound:
		return "The requested file or folder was not found."
	case catalog.PermissionDenied:
		return "The bot has no access to the folder, or its credentials expired."
	case catalog.AuthExpired:
		return "Authentication with the file store failed. Please try again."
	case catalog.InvalidQuery:
		return "The file query is invalid. Check the configured folder ID."
	default:
		return "Could not fetch the file listing. Please try again later."
	}
}

const noFilesMessage = "No meeting recordings found in the folder.\n\nCheck that:\n" +
	"• the folder has audio/video files\n" +
	"• the files are not in the trash\n" +
	"• the bot has access to the folder"
