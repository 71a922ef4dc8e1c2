// Package cpu implements compute.Device with parallel iteration over
// neuron×batch indices within a single kernel, on host memory (spec §4.3).
// queue_* methods execute immediately, so Submit/WaitIdle are no-ops. This
// backend is the reference implementation for numeric correctness (spec
// §4.3): when two backends disagree, the CPU backend's output under
// deterministic inputs is the ground truth to within the tolerances of
// spec §8.
package cpu

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"

	"github.com/zbendefy/macademy-go/compute"
)

// Device is the CPU ComputeDevice backend.
type Device struct {
	index   uint32
	workers int
	logger  *slog.Logger
}

// New returns a CPU device. workers <= 0 defaults to runtime.NumCPU().
func New(index uint32, workers int, logger *slog.Logger) *Device {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{index: index, workers: workers, logger: logger}
}

var _ compute.Device = (*Device)(nil)

func (d *Device) DeviceName() string    { return fmt.Sprintf("CPU Backend (%d threads)", d.workers) }
func (d *Device) TotalMemory() uint64   { return 0 } // host memory is not a fixed-size resource here
func (d *Device) ComputeUnits() uint32  { return uint32(d.workers) }
func (d *Device) SupportsDType(dt compute.DType) bool {
	return dt == compute.Float32
}

func (d *Device) CreateBuffer(sizeBytes int64, usage compute.BufferUsage, name string) (compute.Buffer, error) {
	if sizeBytes < 0 || sizeBytes%4 != 0 {
		return nil, compute.WrapInvalidArgument("cpu: buffer size %d is not a non-negative multiple of 4", sizeBytes)
	}
	return &buffer{data: make([]float32, sizeBytes/4), usage: int32(usage), name: name}, nil
}

func (d *Device) asBuffer(b compute.Buffer) (*buffer, error) {
	cb, ok := b.(*buffer)
	if !ok {
		return nil, compute.WrapInvalidArgument("cpu: buffer %v was not created by this device", b)
	}
	return cb, nil
}

func (d *Device) QueueWrite(b compute.Buffer, src []byte, dstOffset int64) error {
	cb, err := d.asBuffer(b)
	if err != nil {
		return err
	}
	if dstOffset%4 != 0 || len(src)%4 != 0 {
		return compute.WrapInvalidArgument("cpu: write offset/length must be float32-aligned")
	}
	floatOff := dstOffset / 4
	n := int64(len(src)) / 4
	if floatOff+n > int64(len(cb.data)) {
		return compute.WrapInvalidArgument("cpu: write of %d floats at offset %d overruns buffer of %d floats", n, floatOff, len(cb.data))
	}
	for i := int64(0); i < n; i++ {
		bits := binary.LittleEndian.Uint32(src[i*4 : i*4+4])
		cb.data[floatOff+i] = math.Float32frombits(bits)
	}
	return nil
}

func (d *Device) QueueRead(b compute.Buffer, dst []byte, srcOffset int64) error {
	cb, err := d.asBuffer(b)
	if err != nil {
		return err
	}
	if srcOffset%4 != 0 || len(dst)%4 != 0 {
		return compute.WrapInvalidArgument("cpu: read offset/length must be float32-aligned")
	}
	floatOff := srcOffset / 4
	n := int64(len(dst)) / 4
	if floatOff+n > int64(len(cb.data)) {
		return compute.WrapInvalidArgument("cpu: read of %d floats at offset %d overruns buffer of %d floats", n, floatOff, len(cb.data))
	}
	for i := int64(0); i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:i*4+4], math.Float32bits(cb.data[floatOff+i]))
	}
	return nil
}

func (d *Device) QueueFill(b compute.Buffer, pattern uint32, offset, size int64) error {
	cb, err := d.asBuffer(b)
	if err != nil {
		return err
	}
	if offset%4 != 0 || size%4 != 0 {
		return compute.WrapInvalidArgument("cpu: fill offset/size must be float32-aligned")
	}
	floatOff := offset / 4
	n := size / 4
	if floatOff+n > int64(len(cb.data)) {
		return compute.WrapInvalidArgument("cpu: fill of %d floats at offset %d overruns buffer of %d floats", n, floatOff, len(cb.data))
	}
	v := math.Float32frombits(pattern)
	for i := floatOff; i < floatOff+n; i++ {
		cb.data[i] = v
	}
	return nil
}

// Submit and WaitIdle are no-ops: this backend executes every queue_* call
// synchronously and needs no barriers (spec §4.3).
func (d *Device) Submit() error    { return nil }
func (d *Device) WaitIdle() error  { return nil }

// parallelFor splits [0, n) across the device's worker pool, in the style
// of the teacher's network-level WaitGroup used to synchronize threaded
// layer calls.
func parallelFor(workers, n int, body func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		body(0, n)
		return
	}
	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= n {
			break
		}
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			body(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
