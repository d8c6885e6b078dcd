package notify

import (
	"context"
	"fmt"
	"sync"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack delivers notifications to a single Slack channel via the Web API.
type Slack struct {
	client    slackClient
	botToken  string
	channelID string

	mu        sync.Mutex
	connected bool
}

// SlackOpts holds parameters for creating a Slack adapter.
type SlackOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack adapter.
func NewSlack(opts SlackOpts) (*Slack, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel ID is required")
	}
	return &Slack{
		client:    opts.Client,
		botToken:  opts.BotToken,
		channelID: opts.ChannelID,
	}, nil
}

// Connect verifies the token with an auth test.
func (s *Slack) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		s.client = slackapi.New(s.botToken)
	}
	if _, err := s.client.AuthTest(); err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	s.connected = true
	return nil
}

// Send posts the message as a colored attachment.
func (s *Slack) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return fmt.Errorf("slack: not connected")
	}
	client := s.client
	s.mu.Unlock()

	fields := make([]slackapi.AttachmentField, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}

	attachment := slackapi.Attachment{
		Color:  severityColor(msg.Severity),
		Title:  msg.Title,
		Text:   msg.Body,
		Fields: fields,
	}

	if _, _, err := client.PostMessage(s.channelID, slackapi.MsgOptionAttachments(attachment)); err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close marks the adapter as disconnected. The Web API client holds no
// persistent connection.
func (s *Slack) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}
