// Command macademy is the interactive demo shell described in spec §6: a
// stdin/stdout REPL over the engine's core packages, grounded on
// original_source/macademy_cpp/console's ConsoleApp command table and
// SineTrainerApp demo network.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/maps"

	"github.com/zbendefy/macademy-go/compute"
	"github.com/zbendefy/macademy-go/compute/factory"
	"github.com/zbendefy/macademy-go/compute/gpu"
	"github.com/zbendefy/macademy-go/initializer"
	"github.com/zbendefy/macademy-go/network"
	"github.com/zbendefy/macademy-go/resource"
	"github.com/zbendefy/macademy-go/tasks"
	"github.com/zbendefy/macademy-go/training"
)

const pi = 3.141592

// sineToNetworkInput maps [-pi, pi] onto [0, 1].
func sineToNetworkInput(v float32) float32 { return (v + pi) / (pi * 2) }

// networkOutputToSine maps [0, 1] back onto [-1, 1].
func networkOutputToSine(v float32) float32 { return v*2 - 1 }

type app struct {
	logger *slog.Logger
	rng    *rand.Rand

	factory  factory.Factory
	devices  []compute.ComputeDeviceInfo
	selected int
	config   compute.DeviceConfig // applied to every device created by handleFor

	net     *network.Network
	handles map[int]*resource.Handle // device index -> registered handle

	trainingData []tasks.Sample
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	a := &app{
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		config:  compute.DeviceConfig{},
		handles: map[int]*resource.Handle{},
		factory: factory.Factory{
			Logger:       logger,
			GPUDevices:   gpu.Enumerate,
			NewGPUDevice: gpu.New,
		},
	}
	a.buildSineNetwork()

	devices, err := a.factory.EnumerateComputeDevices()
	if err != nil {
		logger.Warn("gpu enumeration unavailable, continuing with cpu only", "err", err)
		devices = []compute.ComputeDeviceInfo{{Backend: factory.BackendCPU, DeviceName: "CPU Backend"}}
	}
	a.devices = devices

	if code := a.run(os.Stdin, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

// buildSineNetwork constructs the demo regression network: 1 input, two
// 32-neuron sigmoid hidden layers, 1 sigmoid output, matching the
// original's SineTrainerApp topology.
func (a *app) buildSineNetwork() {
	n, err := network.NetworkFactory{}.Build("sine", 1, []network.LayerConfig{
		{Activation: network.Sigmoid, NeuronCount: 32},
		{Activation: network.Sigmoid, NeuronCount: 32},
		{Activation: network.Sigmoid, NeuronCount: 1},
	}, nil)
	if err != nil {
		a.logger.Error("failed to build default network", "err", err)
		os.Exit(1)
	}
	n.Description = "sine regression demo network"
	n.GenerateRandomWeights(initializer.NewSeededXavier(a.rng.Int63()))
	a.net = n

	a.trainingData = make([]tasks.Sample, 0, 10000)
	for i := 0; i < 10000; i++ {
		x := (a.rng.Float32()*2 - 1) * pi
		y := float32(math.Sin(float64(x)))
		a.trainingData = append(a.trainingData, tasks.Sample{
			Input:         []float32{sineToNetworkInput(x)},
			DesiredOutput: []float32{(y + 1) / 2},
		})
	}
}

// handleFor registers the network on the currently selected device the
// first time it is needed, then reuses the handle (spec §3 "Lifecycle").
func (a *app) handleFor(deviceIndex int) (*resource.Handle, error) {
	if h, ok := a.handles[deviceIndex]; ok {
		return h, nil
	}
	d, err := a.factory.CreateComputeDevice(a.devices[deviceIndex], a.config)
	if err != nil {
		return nil, err
	}
	h, err := resource.Register(d, a.net)
	if err != nil {
		return nil, err
	}
	a.handles[deviceIndex] = h
	return h, nil
}

func (a *app) run(in io.Reader, out io.Writer) int {
	scanner := bufio.NewScanner(in)
	w := bufio.NewWriter(out)
	defer w.Flush()

	for {
		fmt.Fprint(w, "> ")
		w.Flush()
		if !scanner.Scan() {
			break
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}

		quit, err := a.dispatch(w, args)
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
		if quit {
			w.Flush()
			return 0
		}
	}
	w.Flush()
	return 0
}

func (a *app) dispatch(w *bufio.Writer, args []string) (quit bool, err error) {
	switch args[0] {
	case "quit":
		return true, nil
	case "help":
		a.cmdHelp(w)
	case "list_devices":
		a.cmdListDevices(w)
	case "select_device":
		a.cmdSelectDevice(w, args)
	case "device_info":
		a.cmdDeviceInfo(w)
	case "set_config":
		a.cmdSetConfig(w, args)
	case "benchmark_device":
		return false, a.cmdBenchmarkDevice(w)
	case "train":
		return false, a.cmdTrain(w, args)
	case "eval":
		return false, a.cmdEval(w, args)
	case "test":
		return false, a.cmdTest(w)
	case "export":
		return false, a.cmdExport(w, args)
	case "import":
		return false, a.cmdImport(w, args)
	case "print_network":
		a.cmdPrintNetwork(w)
	default:
		fmt.Fprintf(w, "no such command: %s\n", args[0])
	}
	return false, nil
}

func (a *app) cmdHelp(w *bufio.Writer) {
	for _, line := range []string{
		"quit - exit the application",
		"help - display this help message",
		"list_devices - list available compute devices",
		"select_device N - select a compute device by index",
		"device_info - show info about the selected device",
		"set_config key=value - set a device config key (spec §6), applied to devices created from now on",
		"benchmark_device - time an evaluate-batch workload on the selected device",
		"train [epochs] - train the sine network for epochs (default 1)",
		"eval [index|value] - evaluate one sample by training-set index, or a raw float input",
		"test - run the full training set through the network and print mean error",
		"export [--json|--bson] [path] - write the network to path (default output.bin)",
		"import [path] - read a network from path (default output.bin)",
		"print_network - print the network's topology",
	} {
		fmt.Fprintln(w, line)
	}
}

func (a *app) cmdListDevices(w *bufio.Writer) {
	for i, info := range a.devices {
		marker := " "
		if i == a.selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %d: %s\n", marker, i, info.DeviceName)
	}
}

func (a *app) cmdSelectDevice(w *bufio.Writer, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(w, "usage: select_device N")
		return
	}
	id, err := strconv.Atoi(args[1])
	if err != nil || id < 0 || id >= len(a.devices) {
		fmt.Fprintln(w, "invalid device id")
		return
	}
	a.selected = id
	fmt.Fprintf(w, "selected device: %s\n", a.devices[id].DeviceName)
}

func (a *app) cmdDeviceInfo(w *bufio.Writer) {
	h, err := a.handleFor(a.selected)
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	d := h.Device()
	fmt.Fprintf(w, "name: %s\n", d.DeviceName())
	fmt.Fprintf(w, "compute units: %d\n", d.ComputeUnits())
	fmt.Fprintf(w, "memory: %dMB\n", d.TotalMemory()/(1024*1024))

	keys := maps.Keys(a.config)
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "config: %s = %v\n", k, a.config[k])
	}
}

// cmdSetConfig parses "key=value" and stores it in a.config (spec §6's
// DeviceConfig key table); numeric/bool-looking values are parsed so
// DeviceConfig.Uint32/Bool see the right underlying type, matching the way
// those accessors type-switch on config[key]. Clears cached handles so the
// next handleFor call rebuilds devices with the new config.
func (a *app) cmdSetConfig(w *bufio.Writer, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(w, "usage: set_config key=value")
		return
	}
	kv := strings.SplitN(args[1], "=", 2)
	if len(kv) != 2 || kv[0] == "" {
		fmt.Fprintln(w, "usage: set_config key=value")
		return
	}
	key, raw := kv[0], kv[1]

	var value any = raw
	if b, err := strconv.ParseBool(raw); err == nil {
		value = b
	} else if u, err := strconv.ParseUint(raw, 10, 32); err == nil {
		value = uint32(u)
	}

	a.config[key] = value
	a.handles = map[int]*resource.Handle{}
	fmt.Fprintf(w, "set %s = %v\n", key, value)
}

// cmdBenchmarkDevice times a batched evaluation against the demo network on
// the selected device (SPEC_FULL.md supplemented feature, grounded on
// original_source/macademy_utils/console_app.cpp's benchmark_device
// handler).
func (a *app) cmdBenchmarkDevice(w *bufio.Writer) error {
	h, err := a.handleFor(a.selected)
	if err != nil {
		return err
	}
	const batchSize = 256
	input := make([]float32, batchSize*a.net.InputCount)
	for i := range input {
		input[i] = a.rng.Float32()
	}

	start := time.Now()
	if _, err := tasks.EvaluateBatch(h, batchSize, input); err != nil {
		return err
	}
	elapsed := time.Since(start)
	fmt.Fprintf(w, "evaluated a batch of %d in %s\n", batchSize, elapsed)
	return nil
}

func (a *app) cmdTrain(w *bufio.Writer, args []string) error {
	epochs := uint32(1)
	if len(args) > 1 {
		n, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return compute.WrapInvalidArgument("train: invalid epoch count %q", args[1])
		}
		epochs = uint32(n)
	}

	h, err := a.handleFor(a.selected)
	if err != nil {
		return err
	}

	miniBatch := uint64(50)
	suite := training.Suite{
		TrainingData:         a.trainingData,
		MiniBatchSize:        &miniBatch,
		LearningRate:         0.01,
		Epochs:               epochs,
		ShuffleTrainingData:  false,
		CostFunction:         network.MeanSquared,
		Regularization:       network.NoRegularization,
		RegularizationLambda: 0,
	}

	onEpoch := func(epoch uint32, tracker *training.Tracker) {
		fmt.Fprintf(w, "\repoch %d/%d finished", epoch+1, epochs)
		w.Flush()
	}

	tracker, err := training.Train(h, suite, a.rng, onEpoch, a.logger)
	if err != nil {
		return err
	}
	result := tracker.Wait()
	fmt.Fprintln(w)
	if result.Err != nil {
		return result.Err
	}
	fmt.Fprintf(w, "training finished: %d epochs completed\n", result.EpochsCompleted)
	return nil
}

func (a *app) cmdEval(w *bufio.Writer, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(w, "usage: eval index|value")
		return nil
	}
	h, err := a.handleFor(a.selected)
	if err != nil {
		return err
	}

	var x float32
	if idx, err := strconv.Atoi(args[1]); err == nil && idx >= 0 && idx < len(a.trainingData) {
		x = a.trainingData[idx].Input[0]
	} else {
		raw, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			return compute.WrapInvalidArgument("eval: %q is neither a valid index nor a float", args[1])
		}
		x = sineToNetworkInput(float32(raw))
	}

	out, err := tasks.Evaluate(h, []float32{x})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "output: %f\n", networkOutputToSine(out[0]))
	return nil
}

// cmdTest runs the whole training set forward and prints the mean absolute
// error against the known sine target.
func (a *app) cmdTest(w *bufio.Writer) error {
	h, err := a.handleFor(a.selected)
	if err != nil {
		return err
	}
	var sumErr float32
	for _, s := range a.trainingData {
		out, err := tasks.Evaluate(h, s.Input)
		if err != nil {
			return err
		}
		diff := out[0] - s.DesiredOutput[0]
		if diff < 0 {
			diff = -diff
		}
		sumErr += diff
	}
	fmt.Fprintf(w, "mean absolute error over %d samples: %f\n", len(a.trainingData), sumErr/float32(len(a.trainingData)))
	return nil
}

func (a *app) cmdExport(w *bufio.Writer, args []string) error {
	asJSON := false
	path := "output.bin"
	for _, arg := range args[1:] {
		switch arg {
		case "--json":
			asJSON = true
		case "--bson":
			fmt.Fprintln(w, "bson export is not supported by this build; writing binary instead")
		default:
			path = arg
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return compute.WrapIoFailure("export: %v", err)
	}
	defer f.Close()

	if asJSON {
		err = a.net.ExportJSON(f)
	} else {
		err = a.net.WriteBinary(f)
	}
	if err != nil {
		return compute.WrapIoFailure("export: %v", err)
	}
	fmt.Fprintf(w, "exported network to %s\n", path)
	return nil
}

func (a *app) cmdImport(w *bufio.Writer, args []string) error {
	path := "output.bin"
	if len(args) > 1 {
		path = args[1]
	}
	f, err := os.Open(path)
	if err != nil {
		return compute.WrapIoFailure("import: %v", err)
	}
	defer f.Close()

	n, err := network.ReadBinary(f)
	if err != nil {
		return compute.WrapIoFailure("import: %v", err)
	}
	a.net = n
	a.handles = map[int]*resource.Handle{}
	fmt.Fprintf(w, "imported network %q\n", n.Name)
	return nil
}

func (a *app) cmdPrintNetwork(w *bufio.Writer) {
	fmt.Fprintln(w, a.net.Name)
	fmt.Fprintln(w, "Layers:")
	fmt.Fprintf(w, " Input layer: %d\n", a.net.InputCount)
	for i, l := range a.net.Layers {
		fmt.Fprintf(w, " Layer %d: %d  Activation: %s\n", i, l.NeuronCount, l.Activation)
	}
}
