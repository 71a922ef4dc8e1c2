package main

import (
	"bytes"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zbendefy/macademy-go/compute"
	"github.com/zbendefy/macademy-go/compute/factory"
	"github.com/zbendefy/macademy-go/resource"
)

func newTestApp() *app {
	a := &app{
		logger:  slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil)),
		rng:     rand.New(rand.NewSource(1)),
		config:  compute.DeviceConfig{},
		handles: map[int]*resource.Handle{},
		factory: factory.Factory{},
	}
	a.buildSineNetwork()
	devices, err := a.factory.EnumerateComputeDevices()
	if err != nil {
		panic(err)
	}
	a.devices = devices
	return a
}

func TestListDevicesShowsCPUFirst(t *testing.T) {
	a := newTestApp()
	var out bytes.Buffer
	code := a.run(strings.NewReader("list_devices\nquit\n"), &out)
	require.Equal(t, 0, code)
	require.Contains(t, out.String(), "* 0: CPU Backend")
}

func TestPrintNetworkShowsTopology(t *testing.T) {
	a := newTestApp()
	var out bytes.Buffer
	a.run(strings.NewReader("print_network\nquit\n"), &out)
	require.Contains(t, out.String(), "Input layer: 1")
	require.Contains(t, out.String(), "Layer 2: 1")
}

func TestEvalByIndexReportsOutput(t *testing.T) {
	a := newTestApp()
	var out bytes.Buffer
	a.run(strings.NewReader("eval 0\nquit\n"), &out)
	require.Contains(t, out.String(), "output:")
}

func TestUnknownCommandReportsError(t *testing.T) {
	a := newTestApp()
	var out bytes.Buffer
	a.run(strings.NewReader("bogus\nquit\n"), &out)
	require.Contains(t, out.String(), "no such command")
}

func TestSetConfigAppliesToNewHandle(t *testing.T) {
	a := newTestApp()
	var out bytes.Buffer
	a.run(strings.NewReader("set_config cpu_workers=2\ndevice_info\nquit\n"), &out)
	require.Contains(t, out.String(), "config: cpu_workers = 2")
}

func TestTrainFewEpochsCompletes(t *testing.T) {
	a := newTestApp()
	var out bytes.Buffer
	a.run(strings.NewReader("train 1\nquit\n"), &out)
	require.Contains(t, out.String(), "training finished")
}
