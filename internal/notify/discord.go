package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo.Session methods we use, enabling
// test mocks.
type discordSession interface {
	Open() error
	Close() error
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord delivers notifications to a single Discord channel as embeds.
type Discord struct {
	sess      discordSession
	botToken  string
	channelID string

	mu        sync.Mutex
	connected bool
}

// DiscordOpts holds parameters for creating a Discord adapter.
type DiscordOpts struct {
	BotToken  string // Discord bot token
	ChannelID string // channel to post to
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// NewDiscord creates a Discord adapter.
func NewDiscord(opts DiscordOpts) (*Discord, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel ID is required")
	}
	return &Discord{
		sess:      opts.Session,
		botToken:  opts.BotToken,
		channelID: opts.ChannelID,
	}, nil
}

// Connect opens the Gateway WebSocket connection.
func (d *Discord) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.sess == nil {
		dg, err := discordgo.New("Bot " + d.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuilds
		d.sess = dg
	}
	if err := d.sess.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	d.connected = true
	return nil
}

// Send posts the message as an embed.
func (d *Discord) Send(ctx context.Context, msg Message) error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	sess := d.sess
	d.mu.Unlock()

	fields := make([]*discordgo.MessageEmbedField, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       embedColor(msg.Severity),
		Fields:      fields,
	}

	if _, err := sess.ChannelMessageSendEmbed(d.channelID, embed); err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// Close shuts down the Gateway connection.
func (d *Discord) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil
	}
	d.connected = false
	return d.sess.Close()
}

// embedColor converts the shared sidebar color hint into Discord's integer
// color space.
func embedColor(severity string) int {
	hex := strings.TrimPrefix(severityColor(severity), "#")
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
