package lvslack

import (
	"github.com/slack-go/slack"
)

// Poster is the part of the Slack client used to answer commands.
type Poster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

type Handler struct {
	helpHandler *HelpHandler
	lvHandler   *LVHandler
}

func NewHandler(lv *LVHandler) *Handler {
	return &Handler{
		helpHandler: NewHelpHandler(),
		lvHandler:   lv,
	}
}

func (h *Handler) Handle(data slack.SlashCommand, client Poster) error {
	switch data.Command {
	case "/help":
		return h.helpHandler.HandleCommand(data, client)
	case "/lv":
		return h.lvHandler.HandleCommand(data, client)
	}
	return nil
}
