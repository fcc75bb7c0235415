package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/xhhuango/json"

	"github.com/bcdannyboy/localvol/config"
	"github.com/bcdannyboy/localvol/logger"
	"github.com/bcdannyboy/localvol/models"
	"github.com/bcdannyboy/localvol/positions"
	"github.com/bcdannyboy/localvol/probability"
	lvslack "github.com/bcdannyboy/localvol/slack"
	"github.com/bcdannyboy/localvol/smile"
)

type modelSummary struct {
	TimeToExpiry float64   `json:"time_to_expiry"`
	Forward      float64   `json:"forward"`
	SigmaATM     float64   `json:"sigma_atm"`
	StraddleATM  float64   `json:"straddle_atm"`
	Sigma0       float64   `json:"sigma0"`
	Mu           float64   `json:"mu"`
	Alpha        float64   `json:"alpha"`
	Nu           float64   `json:"nu"`
	Converged    bool      `json:"converged"`
	XGrid        []float64 `json:"x_grid"`
	SGrid        []float64 `json:"s_grid"`
	LocalVolGrid []float64 `json:"local_vol_grid"`
	Trace        []string  `json:"trace,omitempty"`
}

type report struct {
	Model       modelSummary               `json:"model"`
	Smile       []smile.Row                `json:"smile"`
	ForwardRisk probability.Risk           `json:"forward_risk"`
	BullPut     []positions.SpreadWithRisk `json:"bull_put_spreads"`
	BearCall    []positions.SpreadWithRisk `json:"bear_call_spreads"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "localvol: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, closer, err := logger.Init(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mf, err := config.LoadModelFile(cfg.ModelFile)
	if err != nil {
		return err
	}
	model, err := mf.Build(log)
	if err != nil {
		return fmt.Errorf("failed to build model: %w", err)
	}
	if !model.Converged() {
		log.Warn("ATM calibration did not converge", "max_iters", model.MaxCalibrationIters())
	}

	strikes, err := smile.Ladder(model.Forward(), model.SigmaATM(), model.TimeToExpiry(), cfg.StrikeStdevs, cfg.StrikeCount)
	if err != nil {
		return err
	}
	scan := positions.ScanConfig{
		MinReturnOnRisk: cfg.MinReturnOnRisk,
		ConfidenceLevel: cfg.Confidence,
		Workers:         cfg.Workers,
	}

	if cfg.Mode == config.ModeSlack {
		bot := lvslack.NewSlackBot(cfg.SlackAppToken, cfg.SlackBotToken, lvslack.NewLVHandler(model, strikes, scan), log)
		log.Info("starting slack bot")
		return bot.Start(ctx)
	}

	if cfg.ShowProgress {
		scan.Progress = os.Stderr
	}
	rep, err := buildReport(ctx, model, strikes, scan, cfg.Workers)
	if err != nil {
		return err
	}

	out, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.OutputFile, out, 0o644); err != nil {
		return err
	}
	log.Info("report written",
		"file", cfg.OutputFile,
		"strikes", len(rep.Smile),
		"bull_put_spreads", len(rep.BullPut),
		"bear_call_spreads", len(rep.BearCall),
	)
	return nil
}

func buildReport(ctx context.Context, model *models.VanillaLocalVolModel, strikes []float64, scan positions.ScanConfig, workers int) (*report, error) {
	rows, err := smile.BuildTable(ctx, model, strikes, workers)
	if err != nil {
		return nil, err
	}
	risk, err := probability.CalculateForwardRisk(model, scan.ConfidenceLevel)
	if err != nil {
		return nil, err
	}

	scan.SpreadType = positions.BullPut
	bullPut, err := positions.IdentifySpreads(ctx, model, strikes, scan)
	if err != nil {
		return nil, err
	}
	scan.SpreadType = positions.BearCall
	bearCall, err := positions.IdentifySpreads(ctx, model, strikes, scan)
	if err != nil {
		return nil, err
	}

	slog.Default().Debug("report built", "rows", len(rows))
	return &report{
		Model: modelSummary{
			TimeToExpiry: model.TimeToExpiry(),
			Forward:      model.Forward(),
			SigmaATM:     model.SigmaATM(),
			StraddleATM:  model.StraddleATM(),
			Sigma0:       model.Sigma0(),
			Mu:           model.Mu(),
			Alpha:        model.Alpha(),
			Nu:           model.Nu(),
			Converged:    model.Converged(),
			XGrid:        model.XGrid(),
			SGrid:        model.SGrid(),
			LocalVolGrid: model.LocalVolGrid(),
			Trace:        model.Logging(),
		},
		Smile:       rows,
		ForwardRisk: risk,
		BullPut:     bullPut,
		BearCall:    bearCall,
	}, nil
}
