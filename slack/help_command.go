package lvslack

import (
	"github.com/slack-go/slack"
)

const helpText = "Available commands:\n" +
	"/help - Show this help message\n" +
	"/lv info - Show the calibrated model parameters\n" +
	"/lv quote <strike> [call|put] - Price an option off the model\n" +
	"/lv spreads <put|call> [minRoR] - Best credit spreads by probability of profit"

type HelpHandler struct{}

func NewHelpHandler() *HelpHandler {
	return &HelpHandler{}
}

func (h *HelpHandler) HandleCommand(data slack.SlashCommand, client Poster) error {
	_, _, err := client.PostMessage(data.ChannelID,
		slack.MsgOptionText(helpText, false))
	return err
}
