package lvslack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// Acker acknowledges socket mode requests.
type Acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

type SlackBot struct {
	client       *slack.Client
	socketClient *socketmode.Client
	eventHandler *Handler
	logger       *slog.Logger
}

func NewSlackBot(appToken, botToken string, lv *LVHandler, logger *slog.Logger) *SlackBot {
	if logger == nil {
		logger = slog.Default()
	}
	client := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socketClient := socketmode.New(
		client,
		socketmode.OptionLog(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)),
	)

	return &SlackBot{
		client:       client,
		socketClient: socketClient,
		eventHandler: NewHandler(lv),
		logger:       logger,
	}
}

// Start serves slash commands until ctx is cancelled.
func (sb *SlackBot) Start(ctx context.Context) error {
	go func() {
		for evt := range sb.socketClient.Events {
			if data, ok := sb.accept(evt, sb.socketClient); ok {
				go sb.handle(data, sb.socketClient)
			}
		}
	}()

	return sb.socketClient.RunContext(ctx)
}

// accept acknowledges a slash command straight away, since slack expects the
// ack within 3 seconds and a spread scan can take longer, and returns the
// command to run.
func (sb *SlackBot) accept(evt socketmode.Event, acker Acker) (slack.SlashCommand, bool) {
	switch evt.Type {
	case socketmode.EventTypeSlashCommand:
		if evt.Request != nil {
			acker.Ack(*evt.Request)
		}
		data, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			sb.logger.Warn("unexpected slash command payload", "type", fmt.Sprintf("%T", evt.Data))
		}
		return data, ok
	case socketmode.EventTypeConnected:
		sb.logger.Info("connected to slack")
	}
	return slack.SlashCommand{}, false
}

func (sb *SlackBot) handle(data slack.SlashCommand, client Poster) {
	if err := sb.eventHandler.Handle(data, client); err != nil {
		sb.logger.Error("slash command failed", "command", data.Command, "error", err)
	}
}
