package gpu

import "goki.dev/vgpu/v2/vgpu"

// stage identifies which side of the host/device boundary last wrote a
// buffer, for the dirty-buffer map (spec §4.4).
type stage int

const (
	stageNone stage = iota
	stageTransfer
	stageCompute
)

// buffer is the GPU backend's Buffer: a dynamic value bound into the
// device's single storage VarSet, addressed by its slot index (spec §4.4,
// grounded on the teacher's vgpu.VarSet/Val dynamic-value model).
type buffer struct {
	val       *vgpu.Val
	sizeBytes int64
	name      string
	dirty     stage
}

func (b *buffer) SizeBytes() int64 { return b.sizeBytes }
func (b *buffer) Name() string     { return b.name }
