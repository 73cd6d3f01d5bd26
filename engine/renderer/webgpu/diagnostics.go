package webgpu

import "github.com/spaghettifunk/anima-webgpu/engine/core"

// FrameDiagnostics carries the frame number into the code paths that log
// per frame details. Logging is only active for the first verboseFrames
// frames.
type FrameDiagnostics struct {
	frame         uint64
	verboseFrames int
}

func NewFrameDiagnostics(verboseFrames int) *FrameDiagnostics {
	return &FrameDiagnostics{verboseFrames: verboseFrames}
}

func (d *FrameDiagnostics) Frame() uint64 { return d.frame }

func (d *FrameDiagnostics) Verbose() bool {
	return d.frame < uint64(d.verboseFrames)
}

func (d *FrameDiagnostics) Logf(format string, args ...interface{}) {
	if !d.Verbose() {
		return
	}
	core.LogDebug("frame #%d - "+format, append([]interface{}{d.frame}, args...)...)
}

func (d *FrameDiagnostics) Advance() { d.frame++ }
