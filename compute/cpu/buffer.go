package cpu

// buffer is the CPU backend's Buffer: host memory, stored natively as
// float32 since every kernel in spec §4.5 operates on float32 (spec §4.2:
// "Memory is host memory" for this backend).
type buffer struct {
	data  []float32
	usage int32
	name  string
}

func (b *buffer) SizeBytes() int64 { return int64(len(b.data)) * 4 }
func (b *buffer) Name() string     { return b.name }

// floats returns the buffer's backing float32 slice directly; only called
// from within this package's kernels.
func (b *buffer) floats() []float32 { return b.data }
