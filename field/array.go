package field

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
)

// Space identifies where an array's values live.
type Space int

const (
	// HostSpace arrays store values in process memory.
	HostSpace Space = iota
	// DeviceSpace arrays store values in device memory and are staged
	// through a host mirror for every transfer.
	DeviceSpace
)

func (s Space) String() string {
	if s == DeviceSpace {
		return "DeviceSpace"
	}
	return "HostSpace"
}

// Array is a scalar field over a layout's owned block, padded by a uniform
// ghost width on every side of every axis. Values are stored with the dof
// index innermost and axis 0 varying fastest among the mesh axes.
type Array struct {
	label  string
	layout *Layout
	ghost  int
	space  Space
	host   []float64
	mem    *gocca.OCCAMemory
}

// NewArray allocates a zero-initialized host-resident array.
func NewArray(label string, layout *Layout, ghostWidth int) (*Array, error) {
	a, err := newArray(label, layout, ghostWidth)
	if err != nil {
		return nil, err
	}
	a.host = make([]float64, a.Len())
	return a, nil
}

// NewDeviceArray allocates a zero-initialized device-resident array on the
// given device.
func NewDeviceArray(label string, layout *Layout, ghostWidth int, device *gocca.OCCADevice) (*Array, error) {
	if device == nil {
		return nil, fmt.Errorf("field: nil device for array %q", label)
	}
	a, err := newArray(label, layout, ghostWidth)
	if err != nil {
		return nil, err
	}
	a.space = DeviceSpace
	zero := make([]float64, a.Len())
	a.mem = device.Malloc(int64(a.Len()*8), unsafe.Pointer(&zero[0]), nil)
	return a, nil
}

func newArray(label string, layout *Layout, ghostWidth int) (*Array, error) {
	if layout == nil {
		return nil, fmt.Errorf("field: nil layout for array %q", label)
	}
	if ghostWidth < 0 {
		return nil, fmt.Errorf("field: negative ghost width %d for array %q", ghostWidth, label)
	}
	return &Array{label: label, layout: layout, ghost: ghostWidth}, nil
}

// Label returns the array name.
func (a *Array) Label() string { return a.label }

// Layout returns the array's layout.
func (a *Array) Layout() *Layout { return a.layout }

// Space returns the array's storage class.
func (a *Array) Space() Space { return a.space }

// GhostWidth returns the ghost padding per side per axis.
func (a *Array) GhostWidth() int { return a.ghost }

// AllocExtents returns the allocated per-axis extents, owned plus ghosts.
func (a *Array) AllocExtents() []int {
	ext := a.layout.OwnedGlobalSpace().Extents()
	for d := range ext {
		ext[d] += 2 * a.ghost
	}
	return ext
}

// Len returns the total number of stored values, dofs included.
func (a *Array) Len() int {
	n := a.layout.DofsPerEntity()
	for _, e := range a.AllocExtents() {
		n *= e
	}
	return n
}

// FlatIndex maps zero-based owned-region coordinates plus a dof index to a
// flat storage offset, accounting for ghost padding.
func (a *Array) FlatIndex(owned []int, dof int) int {
	ext := a.AllocExtents()
	idx := 0
	for d := len(owned) - 1; d >= 0; d-- {
		idx = idx*ext[d] + owned[d] + a.ghost
	}
	return idx*a.layout.DofsPerEntity() + dof
}

// HostData returns the backing slice of a host-resident array, or nil for a
// device array.
func (a *Array) HostData() []float64 {
	return a.host
}

// MirrorToHost returns a host copy of the array's values. For device arrays
// this is a blocking device-to-host transfer.
func (a *Array) MirrorToHost() ([]float64, error) {
	mirror := make([]float64, a.Len())
	if a.space == HostSpace {
		copy(mirror, a.host)
		return mirror, nil
	}
	if a.mem == nil {
		return nil, fmt.Errorf("field: array %q device memory released", a.label)
	}
	a.mem.CopyTo(unsafe.Pointer(&mirror[0]), int64(len(mirror)*8))
	return mirror, nil
}

// CopyFromHost overwrites the array's values from a host buffer. For device
// arrays this is a blocking host-to-device transfer.
func (a *Array) CopyFromHost(vals []float64) error {
	if len(vals) != a.Len() {
		return fmt.Errorf("field: array %q holds %d values, got %d", a.label, a.Len(), len(vals))
	}
	if a.space == HostSpace {
		copy(a.host, vals)
		return nil
	}
	if a.mem == nil {
		return fmt.Errorf("field: array %q device memory released", a.label)
	}
	a.mem.CopyFrom(unsafe.Pointer(&vals[0]), int64(len(vals)*8))
	return nil
}

// Close releases device memory. Host arrays are unaffected.
func (a *Array) Close() {
	if a.mem != nil {
		a.mem.Free()
		a.mem = nil
	}
}
