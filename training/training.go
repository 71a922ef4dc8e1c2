// Package training implements TrainingOrchestrator: the epoch/minibatch
// loop that drives ComputeTasks.TrainMinibatch over a NetworkResourceHandle,
// with shuffling, progress reporting, and cooperative cancellation (spec
// §4.6, §4.7, §5).
package training

import (
	"log/slog"
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/zbendefy/macademy-go/compute"
	"github.com/zbendefy/macademy-go/network"
	"github.com/zbendefy/macademy-go/resource"
	"github.com/zbendefy/macademy-go/tasks"
)

// Suite is the value type describing one training run (spec §3
// TrainingSuite).
type Suite struct {
	TrainingData         []tasks.Sample
	MiniBatchSize        *uint64 // nil means one minibatch spanning the whole set
	LearningRate         float32
	Epochs               uint32
	ShuffleTrainingData  bool
	CostFunction         network.CostFunction
	Regularization       network.Regularization
	RegularizationLambda float32
}

// Tracker is the progress-reporting handle a client polls from any thread
// while the orchestrator runs on its own goroutine (spec §3
// TrainingResultTracker, §5 "atomic reads/writes").
type Tracker struct {
	epochProgress    atomic.Uint32 // float32 bits, in [0,1]
	epochsFinished   atomic.Uint64
	stopAtNextEpoch  atomic.Bool
	done             chan struct{}
	result           atomic.Value // holds Result once done is closed
}

// NewTracker returns a fresh, not-yet-started tracker.
func NewTracker() *Tracker {
	return &Tracker{done: make(chan struct{})}
}

// EpochProgress returns the current epoch's completion fraction in [0,1].
func (t *Tracker) EpochProgress() float32 {
	return math.Float32frombits(t.epochProgress.Load())
}

// EpochsFinished returns how many whole epochs have completed so far.
func (t *Tracker) EpochsFinished() uint64 { return t.epochsFinished.Load() }

// RequestStop asks the orchestrator to exit at the next epoch boundary
// (spec §4.6, §5 "Cancellation"). Mid-epoch cancellation is not supported.
func (t *Tracker) RequestStop() { t.stopAtNextEpoch.Store(true) }

// Done returns a channel closed when the run finishes, for any reason.
func (t *Tracker) Done() <-chan struct{} { return t.done }

// Result returns the run's outcome without blocking; before Done() is
// closed it returns the zero Result. Call only after <-Done() or Wait().
func (t *Tracker) Result() Result {
	v, _ := t.result.Load().(Result)
	return v
}

// Wait blocks until the run finishes and returns its outcome.
func (t *Tracker) Wait() Result {
	<-t.done
	return t.Result()
}

// Result is the terminal outcome of one orchestrator run.
type Result struct {
	EpochsCompleted uint32
	Cancelled       bool
	Err             error
}

// Train validates suite and launches the epoch loop on its own goroutine,
// returning immediately with a Tracker the caller can poll or wait on
// (spec §4.6 "TrainingOrchestrator (Train)", §5 "Suspension points").
// onEpoch, if non-nil, is called synchronously on the worker goroutine
// after each epoch completes -- a supplement to the spec's polled-tracker
// model for callers that want a push notification instead.
func Train(h *resource.Handle, suite Suite, rng *rand.Rand, onEpoch func(epoch uint32, tracker *Tracker), logger *slog.Logger) (*Tracker, error) {
	if suite.Epochs < 1 {
		return nil, compute.WrapInvalidArgument("training: epochs must be >= 1")
	}
	if len(suite.TrainingData) == 0 {
		return nil, compute.WrapInvalidArgument("training: training_data must be non-empty")
	}
	n := h.Network()
	if uint32(len(suite.TrainingData[0].Input)) != n.InputCount {
		return nil, compute.WrapInvalidArgument("training: sample input length does not match network input_count")
	}
	if uint32(len(suite.TrainingData[0].DesiredOutput)) != n.OutputCount() {
		return nil, compute.WrapInvalidArgument("training: sample desired_output length does not match network output_count")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	tracker := NewTracker()

	miniBatchSize := uint64(len(suite.TrainingData))
	if suite.MiniBatchSize != nil {
		miniBatchSize = *suite.MiniBatchSize
	}
	if err := h.AllocateTrainingResources(uint32(miniBatchSize)); err != nil {
		return nil, err
	}

	go runEpochs(h, suite, miniBatchSize, rng, tracker, onEpoch, logger)
	return tracker, nil
}

func runEpochs(h *resource.Handle, suite Suite, miniBatchSize uint64, rng *rand.Rand, tracker *Tracker, onEpoch func(uint32, *Tracker), logger *slog.Logger) {
	result := Result{}
	defer func() {
		tracker.result.Store(result)
		close(tracker.done)
	}()

	data := suite.TrainingData
	total := len(data)
	params := tasks.Params{
		Cost:            suite.CostFunction,
		Regularization:  suite.Regularization,
		LearningRate:    suite.LearningRate,
		Lambda:          suite.RegularizationLambda,
		TrainingSetSize: total,
	}

	var epoch uint32
	for epoch = 0; epoch < suite.Epochs; epoch++ {
		if tracker.stopAtNextEpoch.Load() {
			result.Cancelled = true
			break
		}

		epochData := data
		if suite.ShuffleTrainingData {
			epochData = shuffled(data, rng)
		}

		for begin := 0; begin < total; begin += int(miniBatchSize) {
			end := begin + int(miniBatchSize)
			if end > total {
				end = total
			}
			if err := tasks.TrainMinibatch(h, epochData, begin, end, params); err != nil {
				logger.Error("train_minibatch failed", "epoch", epoch, "begin", begin, "end", end, "err", err)
				result.Err = err
				result.EpochsCompleted = epoch
				return
			}
			if err := h.Device().WaitIdle(); err != nil {
				logger.Error("wait_idle failed", "epoch", epoch, "err", err)
				result.Err = err
				result.EpochsCompleted = epoch
				return
			}
			tracker.epochProgress.Store(math.Float32bits(float32(end) / float32(total)))
		}

		tracker.epochsFinished.Add(1)
		result.EpochsCompleted = epoch + 1
		if onEpoch != nil {
			onEpoch(epoch, tracker)
		}
	}

	if err := h.SynchronizeNetworkData(); err != nil {
		logger.Error("synchronize_network_data failed", "err", err)
		if result.Err == nil {
			result.Err = err
		}
	}
	h.FreeCachedResources()
}

func shuffled(data []tasks.Sample, rng *rand.Rand) []tasks.Sample {
	out := make([]tasks.Sample, len(data))
	copy(out, data)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
