package lvslack

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/slack-go/slack"

	"github.com/bcdannyboy/localvol/positions"
)

const maxSpreadsShown = 5

// Model is the calibrated model served by the bot.
type Model interface {
	positions.Model
	SigmaATM() float64
	Sigma0() float64
	Mu() float64
	Alpha() float64
	Nu() float64
	Converged() bool
}

// LVHandler answers /lv commands from a frozen model.
type LVHandler struct {
	model    Model
	strikes  []float64
	scan     positions.ScanConfig
	maxShown int
}

func NewLVHandler(model Model, strikes []float64, scan positions.ScanConfig) *LVHandler {
	scan.Progress = nil
	return &LVHandler{model: model, strikes: strikes, scan: scan, maxShown: maxSpreadsShown}
}

func (h *LVHandler) HandleCommand(data slack.SlashCommand, client Poster) error {
	text, err := h.Respond(context.Background(), data.Text)
	if err != nil {
		text = fmt.Sprintf("Error: %s\n%s", err, helpText)
	}
	_, _, err = client.PostMessage(data.ChannelID, slack.MsgOptionText(text, false))
	return err
}

// Respond computes the reply to the arguments of an /lv command.
func (h *LVHandler) Respond(ctx context.Context, text string) (string, error) {
	args := strings.Fields(text)
	if len(args) == 0 {
		return "", errors.New("missing subcommand")
	}
	switch strings.ToLower(args[0]) {
	case "info":
		return h.info(), nil
	case "quote":
		strike, isCall, err := parseQuoteArgs(args[1:], h.model.Forward())
		if err != nil {
			return "", err
		}
		q, err := positions.QuoteOption(h.model, strike, isCall)
		if err != nil {
			return "", err
		}
		return formatQuote(q), nil
	case "spreads":
		cfg, err := parseSpreadArgs(args[1:], h.scan)
		if err != nil {
			return "", err
		}
		spreads, err := positions.IdentifySpreads(ctx, h.model, h.strikes, cfg)
		if err != nil {
			return "", err
		}
		return formatSpreads(spreads, h.maxShown), nil
	}
	return "", fmt.Errorf("unknown subcommand %q", args[0])
}

func (h *LVHandler) info() string {
	m := h.model
	return fmt.Sprintf("Forward %.4f, T %.4f, ATM normal vol %.4f\nsigma0 %.6f, mu %.6f, alpha %.6f, nu %.6f, converged %t",
		m.Forward(), m.TimeToExpiry(), m.SigmaATM(), m.Sigma0(), m.Mu(), m.Alpha(), m.Nu(), m.Converged())
}

// parseQuoteArgs reads "<strike> [call|put]"; without a type the
// out-of-the-money side is quoted.
func parseQuoteArgs(args []string, forward float64) (float64, bool, error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, false, errors.New("usage: /lv quote <strike> [call|put]")
	}
	strike, err := strconv.ParseFloat(args[0], 64)
	if err != nil || !(strike > 0) {
		return 0, false, fmt.Errorf("invalid strike %q", args[0])
	}
	isCall := strike >= forward
	if len(args) == 2 {
		switch strings.ToLower(args[1]) {
		case "call", "c":
			isCall = true
		case "put", "p":
			isCall = false
		default:
			return 0, false, fmt.Errorf("invalid option type %q", args[1])
		}
	}
	return strike, isCall, nil
}

func parseSpreadArgs(args []string, base positions.ScanConfig) (positions.ScanConfig, error) {
	if len(args) < 1 || len(args) > 2 {
		return base, errors.New("usage: /lv spreads <put|call> [minRoR]")
	}
	switch strings.ToLower(args[0]) {
	case "put", "bullput":
		base.SpreadType = positions.BullPut
	case "call", "bearcall":
		base.SpreadType = positions.BearCall
	default:
		return base, fmt.Errorf("invalid spread type %q", args[0])
	}
	if len(args) == 2 {
		minRoR, err := strconv.ParseFloat(args[1], 64)
		if err != nil || minRoR < 0 {
			return base, fmt.Errorf("invalid minRoR %q", args[1])
		}
		base.MinReturnOnRisk = minRoR
	}
	return base, nil
}

func formatQuote(q positions.OptionQuote) string {
	kind := "put"
	if q.IsCall {
		kind = "call"
	}
	return fmt.Sprintf("%.2f %s: price %.4f (intrinsic %.4f, extrinsic %.4f), normal vol %.4f, P(ITM) %.2f%%",
		q.Strike, kind, q.Price, q.IntrinsicValue, q.ExtrinsicValue, q.ImpliedNormalVol, 100*q.ProbabilityITM)
}

func formatSpreads(spreads []positions.SpreadWithRisk, limit int) string {
	if len(spreads) == 0 {
		return "No spreads meet the criteria."
	}
	var b strings.Builder
	for i, s := range spreads {
		if i == limit {
			break
		}
		v := s.Spread
		fmt.Fprintf(&b, "%s %.2f/%.2f: credit %.4f, max risk %.4f, RoR %.2f%%, PoP %.2f%%, VaR %.4f, ES %.4f\n",
			v.SpreadType, v.ShortLeg.Strike, v.LongLeg.Strike, v.SpreadCredit, v.MaxRisk,
			100*v.ReturnOnRisk, 100*s.ProbabilityOfProfit, s.VaR, s.ExpectedShortfall)
	}
	return strings.TrimRight(b.String(), "\n")
}
