// Package predictor binds the feed-forward network to habit data: 15 input
// features, hidden layers of 64, 32 and 16 units, 5 outputs.
package predictor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/bl0ckchained/myelinmap-sub000/internal/features"
	"github.com/bl0ckchained/myelinmap-sub000/internal/model"
	"github.com/bl0ckchained/myelinmap-sub000/internal/nn"

	"go.uber.org/zap"
)

const (
	DefaultLearningRate = 0.01
	DefaultDropoutRate  = 0.2
	DefaultEpochs       = 100
)

var HiddenSizes = []int{64, 32, 16}

var ErrIncompatibleState = errors.New("predictor: network state does not fit habit feature/target widths")

type Config struct {
	LearningRate float64
	DropoutRate  float64
	Epochs       int
	Seed         int64
}

func DefaultConfig() Config {
	return Config{
		LearningRate: DefaultLearningRate,
		DropoutRate:  DefaultDropoutRate,
		Epochs:       DefaultEpochs,
		Seed:         1,
	}
}

type TrainingSet struct {
	HabitIDs []int
	Features []features.FeatureVector
	Targets  []features.TargetVector
}

func (s TrainingSet) Len() int { return len(s.Features) }

func (s TrainingSet) examples() []nn.Example {
	out := make([]nn.Example, len(s.Features))
	for i := range s.Features {
		out[i] = nn.Example{Input: s.Features[i].Slice(), Target: s.Targets[i].Slice()}
	}
	return out
}

// HabitPredictor owns exactly one network for its lifetime. Retraining
// updates that network in place; build a new predictor to start over.
type HabitPredictor struct {
	network *nn.Network
	epochs  int
	trained bool
	now     func() time.Time
	logger  *zap.Logger
}

type Option func(*HabitPredictor)

func WithClock(now func() time.Time) Option {
	return func(p *HabitPredictor) { p.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *HabitPredictor) { p.logger = logger }
}

func New(cfg Config, opts ...Option) (*HabitPredictor, error) {
	if cfg.LearningRate == 0 {
		cfg.LearningRate = DefaultLearningRate
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = DefaultEpochs
	}
	network, err := nn.New(nn.Config{
		InputSize:    features.FeatureLen,
		HiddenSizes:  HiddenSizes,
		OutputSize:   features.TargetLen,
		LearningRate: cfg.LearningRate,
		DropoutRate:  cfg.DropoutRate,
	}, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, fmt.Errorf("failed to build network: %w", err)
	}

	p := &HabitPredictor{
		network: network,
		epochs:  cfg.Epochs,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PrepareTrainingData emits one example per habit that has a progress entry.
// Habits without progress are skipped. activities may hold records for any
// habit; each habit only sees its own.
func (p *HabitPredictor) PrepareTrainingData(
	habits []model.Habit,
	progress map[int]model.HabitProgress,
	activities []model.DailyActivity,
) TrainingSet {
	var set TrainingSet
	byHabit := model.GroupByHabit(activities)
	now := p.now()

	for _, h := range habits {
		prog, ok := progress[h.ID]
		if !ok {
			continue
		}
		in := features.Input{Habit: h, Progress: prog, Activities: byHabit[h.ID]}
		set.HabitIDs = append(set.HabitIDs, h.ID)
		set.Features = append(set.Features, features.Extract(in, now))
		set.Targets = append(set.Targets, features.BuildTarget(in))
	}
	return set
}

// Train fits the network on set in order for the configured epoch budget.
func (p *HabitPredictor) Train(set TrainingSet) nn.TrainResult {
	res := p.network.Train(set.examples(), p.epochs)
	if set.Len() > 0 {
		p.trained = true
	}
	p.logger.Info("Habit predictor trained",
		zap.Int("examples", set.Len()),
		zap.Int("epochs", res.Epochs),
		zap.Float64("loss", res.Loss),
		zap.Bool("early_stop", res.Stopped),
	)
	return res
}

func (p *HabitPredictor) Trained() bool { return p.trained }

// PredictHabit runs one habit's current state through the network and maps
// the outputs back to habit units. Risk factors and modifications are left
// empty; the heuristic engine supplies those.
func (p *HabitPredictor) PredictHabit(
	habit model.Habit,
	progress model.HabitProgress,
	activities []model.DailyActivity,
) model.HabitPrediction {
	in := features.Input{Habit: habit, Progress: progress, Activities: model.FilterByHabit(activities, habit.ID)}
	out := p.network.Predict(features.Extract(in, p.now()).Slice())

	hour := int(math.Round(out[3] * 24))
	if hour > 23 {
		hour = 23
	}

	return model.HabitPrediction{
		HabitID:                habit.ID,
		CompletionProbability:  math.Round(out[0] * 100),
		PredictedStreak:        int(math.Round(out[1] * 30)),
		RiskScore:              math.Round(out[2] * 100),
		OptimalTime:            model.FormatHour(hour),
		Confidence:             math.Round(out[4] * 100),
		RiskFactors:            []string{},
		SuggestedModifications: []string{},
	}
}

func (p *HabitPredictor) Export() nn.State {
	return p.network.Export()
}

// Restore loads a previously exported state. The state must keep the habit
// feature and target widths.
func (p *HabitPredictor) Restore(s nn.State) error {
	if err := s.Validate(); err != nil {
		return err
	}
	sizes := s.LayerSizes
	if sizes[0] != features.FeatureLen || sizes[len(sizes)-1] != features.TargetLen {
		return fmt.Errorf("%w: got %v", ErrIncompatibleState, sizes)
	}
	if err := p.network.Import(s); err != nil {
		return err
	}
	p.trained = true
	return nil
}
