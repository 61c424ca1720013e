package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matthoffner/wizardcoder-sandbox/internal/ai"
	"github.com/matthoffner/wizardcoder-sandbox/internal/buffer"
	"github.com/matthoffner/wizardcoder-sandbox/internal/classify"
	"github.com/matthoffner/wizardcoder-sandbox/internal/config"
	"github.com/matthoffner/wizardcoder-sandbox/internal/diag"
	"github.com/matthoffner/wizardcoder-sandbox/internal/history"
	"github.com/matthoffner/wizardcoder-sandbox/internal/logging"
	"github.com/matthoffner/wizardcoder-sandbox/internal/sandbox"
	"github.com/matthoffner/wizardcoder-sandbox/internal/stats"
)

// diagHistory is how many diagnostic events late subscribers get replayed.
const diagHistory = 64

// app is what every streaming command needs: resolved config, a logger,
// the diagnostic bus and a client for the configured endpoint.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	bus    *diag.Bus
	sink   diag.Sink
	client *ai.Client
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	logger := logging.New(logging.Options{Verbose: verbose, JSON: logJSON, Output: os.Stderr})
	bus := diag.NewBus(diagHistory)
	sink := diag.Multi{diag.LogSink{Logger: logger}, bus}
	return &app{
		cfg:    cfg,
		logger: logger,
		bus:    bus,
		sink:   sink,
		client: ai.NewClient(cfg, logger, sink),
	}, nil
}

func (a *app) close() {
	a.bus.Close()
	a.logger.Sync()
}

// newController builds a controller over a fresh document. chat may be nil.
func (a *app) newController(chat sandbox.ChatSink) (*sandbox.Controller, *buffer.Document) {
	doc := buffer.NewDocument(classify.Unknown, "")
	ctrl := sandbox.New(sandbox.Options{
		Client:    a.client,
		Surface:   doc,
		Chat:      chat,
		ClearMode: a.cfg.ClearMode,
		AutoMode:  a.cfg.AutoMode,
		FollowUp:  a.cfg.FollowUp,
		Logger:    a.logger,
		Sink:      a.sink,
	})
	ctrl.OnSessionEnd(a.recordSession)
	return ctrl, doc
}

// recordSession persists the prompt and metrics of a finished session.
// Failures are only logged.
func (a *app) recordSession(s sandbox.SessionSummary) {
	if err := history.Save(history.Entry{
		Timestamp: s.Started,
		Session:   s.ID,
		Prompt:    s.Prompt,
		Auto:      s.Auto,
		Iteration: s.Iteration,
		Status:    string(s.Status),
	}); err != nil {
		a.logger.Warn("failed to save history", zap.Error(err))
	}
	if err := stats.Save(stats.FromSummary(s)); err != nil {
		a.logger.Warn("failed to save stats", zap.Error(err))
	}
	a.logger.Debug("session ended",
		zap.String("session", s.ID),
		zap.String("status", string(s.Status)),
		zap.Duration("first_token", s.FirstToken),
		zap.Duration("duration", s.Duration.Round(time.Millisecond)))
}
