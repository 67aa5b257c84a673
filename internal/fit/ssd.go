package fit

import (
	"log/slog"

	"golang.org/x/sys/cpu"
)

// SSD (sum of squared differences) kernels compare an interleaved RGBA raster
// against the planar reference cache. The kernel is picked once at startup:
// wide-issue CPUs (AVX2, ASIMD) get the 8-way unrolled loop, everything else
// the 4-way loop.

// SSDKernel identifies which unrolled kernel is active.
type SSDKernel int

const (
	SSDKernelNaive     SSDKernel = iota // one pixel per iteration
	SSDKernelUnrolled4                  // 4 pixels per iteration
	SSDKernelUnrolled8                  // 8 pixels per iteration
)

func (k SSDKernel) String() string {
	switch k {
	case SSDKernelNaive:
		return "naive"
	case SSDKernelUnrolled4:
		return "unrolled4"
	case SSDKernelUnrolled8:
		return "unrolled8"
	default:
		return "unknown"
	}
}

// ssdFunc sums dR^2+dG^2+dB^2 over width*height pixels. pix is an RGBA buffer
// with the given stride; red, green and blue are row-major planes of the same
// extent.
type ssdFunc func(pix []uint8, stride int, red, green, blue []uint8, width, height int) int64

var ssdKernels = map[SSDKernel]ssdFunc{
	SSDKernelNaive:     ssdNaive,
	SSDKernelUnrolled4: ssdUnrolled4,
	SSDKernelUnrolled8: ssdUnrolled8,
}

// ActiveSSDKernel reports which kernel was selected at initialization.
var ActiveSSDKernel SSDKernel

var fastSSD ssdFunc

func init() {
	switch {
	case cpu.X86.HasAVX2:
		ActiveSSDKernel = SSDKernelUnrolled8
		slog.Debug("SSD kernel initialized", "kernel", ActiveSSDKernel.String(), "cpu", "AVX2")
	case cpu.ARM64.HasASIMD:
		ActiveSSDKernel = SSDKernelUnrolled8
		slog.Debug("SSD kernel initialized", "kernel", ActiveSSDKernel.String(), "cpu", "ASIMD")
	default:
		ActiveSSDKernel = SSDKernelUnrolled4
		slog.Debug("SSD kernel initialized", "kernel", ActiveSSDKernel.String(), "reason", "no wide-issue feature detected")
	}
	fastSSD = ssdKernels[ActiveSSDKernel]
}
