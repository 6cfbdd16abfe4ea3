package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bl0ckchained/myelinmap-sub000/internal/correlation"
	"github.com/bl0ckchained/myelinmap-sub000/internal/heuristic"
	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
	"github.com/bl0ckchained/myelinmap-sub000/internal/predictor"
	"github.com/bl0ckchained/myelinmap-sub000/internal/progress"
	"github.com/bl0ckchained/myelinmap-sub000/internal/service"
)

type trainOutput struct {
	Model    string  `json:"model"`
	Examples int     `json:"examples"`
	Epochs   int     `json:"epochs"`
	Loss     float64 `json:"loss"`
	Stopped  bool    `json:"early_stop"`
}

func newTrainCommand(c *cli) *cobra.Command {
	var (
		out    string
		epochs int
		seed   int64
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a predictor on a history file and save its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHistory(c.data)
			if err != nil {
				return err
			}

			cfg := predictor.DefaultConfig()
			cfg.Epochs = epochs
			cfg.Seed = seed
			p, err := predictor.New(cfg, predictor.WithClock(c.now), predictor.WithLogger(c.log))
			if err != nil {
				return err
			}

			now := c.now()
			set := p.PrepareTrainingData(h.Habits, progress.ComputeAll(h.Habits, h.Activities, now), h.Activities)
			res := p.Train(set)

			if err := saveModel(out, &modelFile{
				State:     p.Export(),
				Epochs:    res.Epochs,
				Loss:      res.Loss,
				Examples:  set.Len(),
				TrainedAt: now,
			}); err != nil {
				return err
			}
			c.log.Debug("Model saved", zap.String("path", out))

			return writeJSON(cmd.OutOrStdout(), trainOutput{
				Model:    out,
				Examples: set.Len(),
				Epochs:   res.Epochs,
				Loss:     res.Loss,
				Stopped:  res.Stopped,
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "model.json", "Where to write the trained state")
	cmd.Flags().IntVar(&epochs, "epochs", predictor.DefaultEpochs, "Training epochs")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Seed for weight init and dropout")
	return cmd
}

type predictOutput struct {
	Source      string                        `json:"source"`
	Predictions map[int]model.HabitPrediction `json:"predictions"`
}

func newPredictCommand(c *cli) *cobra.Command {
	var modelPath string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict every habit, using a trained model when given",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHistory(c.data)
			if err != nil {
				return err
			}

			var p *predictor.HabitPredictor
			if modelPath != "" {
				m, err := loadModel(modelPath)
				if err != nil {
					return err
				}
				p, err = predictor.New(predictor.DefaultConfig(), predictor.WithClock(c.now), predictor.WithLogger(c.log))
				if err != nil {
					return err
				}
				if err := p.Restore(m.State); err != nil {
					return fmt.Errorf("model %s: %w", modelPath, err)
				}
			}

			report := service.Assemble(heuristic.NewEngine(c.now), p, h.Habits, h.Activities, c.now())
			for id, pred := range report.Predictions {
				pred.CompletionProbability = model.ClampPercent(pred.CompletionProbability)
				report.Predictions[id] = pred
			}
			return writeJSON(cmd.OutOrStdout(), predictOutput{
				Source:      report.Source,
				Predictions: report.Predictions,
			})
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "Model file written by train; heuristics only when empty")
	return cmd
}

type insightsOutput struct {
	Progress map[int]model.HabitProgress     `json:"progress"`
	Insights map[int]model.BehavioralInsight `json:"insights"`
}

func newInsightsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Show progress and behavioral insights per habit",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHistory(c.data)
			if err != nil {
				return err
			}
			now := c.now()
			prog := progress.ComputeAll(h.Habits, h.Activities, now)
			return writeJSON(cmd.OutOrStdout(), insightsOutput{
				Progress: prog,
				Insights: heuristic.NewEngine(c.now).InsightsAll(h.Habits, prog, h.Activities),
			})
		},
	}
}

func newCorrelateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "correlate",
		Short: "Correlate every pair of habits",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHistory(c.data)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), correlation.Compute(h.Habits, h.Activities))
		},
	}
}
