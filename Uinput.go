package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	autoDevicePath = "auto"

	virtualDeviceName    = "touch_remap_uinput"
	virtualDeviceVendor  = 0x1234
	virtualDeviceProduct = 0x5678
	virtualDeviceVersion = 1

	defaultAxisMin int32 = 0
	defaultAxisMax int32 = 32767
)

// SourceOpenError reports that the physical touch device could not be opened.
type SourceOpenError struct {
	Path string
	Err  error
}

func (e *SourceOpenError) Error() string {
	return fmt.Sprintf("open input device %s: %v", e.Path, e.Err)
}

func (e *SourceOpenError) Unwrap() error { return e.Err }

// VirtualDeviceError reports a failed step while building the uinput device.
type VirtualDeviceError struct {
	Op  string
	Err error
}

func (e *VirtualDeviceError) Error() string {
	return fmt.Sprintf("uinput %s: %v", e.Op, e.Err)
}

func (e *VirtualDeviceError) Unwrap() error { return e.Err }

///----------Source Device-----------///

// SourceDevice A non-blocking evdev node
type SourceDevice struct {
	Path   string
	fd     int
	Grabed bool
}

func openSourceDevice(path string) (*SourceDevice, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &SourceOpenError{Path: path, Err: err}
	}
	return &SourceDevice{Path: path, fd: fd}, nil
}

// Read reads raw bytes; EAGAIN is returned as-is when the device is idle.
func (dev *SourceDevice) Read(p []byte) (int, error) {
	n, err := unix.Read(dev.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// AbsInfo queries the device's absolute axis info for one code.
func (dev *SourceDevice) AbsInfo(code int) (AbsInfo, error) {
	return getAbsInfo(dev.fd, code)
}

// Grab the input device exclusively.
func (dev *SourceDevice) Grab() error {
	if err := ioctl(dev.fd, EVIOCGRAB(), uintptr(1)); err != nil {
		return err
	}
	dev.Grabed = true
	return nil
}

// Release a grabbed input device.
func (dev *SourceDevice) Release() error {
	dev.Grabed = false
	return ioctl(dev.fd, EVIOCGRAB(), uintptr(0))
}

func (dev *SourceDevice) Close() error {
	if dev.Grabed {
		_ = dev.Release()
	}
	return unix.Close(dev.fd)
}

// Read Input Device's ABS Data
func getAbsInfo(fd int, key int) (AbsInfo, error) {
	absData := AbsInfo{}

	err := ioctl(fd, EVIOCGABS(key), uintptr(unsafe.Pointer(&absData)))
	if err != nil {
		return AbsInfo{}, err
	}

	return absData, nil
}

///----------Axis Ranges-----------///

// AxisRange is the reported [Min, Max] of one absolute axis.
type AxisRange struct {
	Min int32
	Max int32
}

func (r AxisRange) String() string {
	return fmt.Sprintf("%d..%d", r.Min, r.Max)
}

type RangeOrigin int

const (
	RangeDiscovered RangeOrigin = iota
	RangeDefault
)

// AxisResult carries a resolved range and where it came from. Err holds the
// query failure when Origin is RangeDefault.
type AxisResult struct {
	Range  AxisRange
	Origin RangeOrigin
	Err    error
}

type absInfoQuerier interface {
	AbsInfo(code int) (AbsInfo, error)
}

func resolveAxisRange(src absInfoQuerier, code int) AxisResult {
	info, err := src.AbsInfo(code)
	if err != nil {
		return AxisResult{
			Range:  AxisRange{Min: defaultAxisMin, Max: defaultAxisMax},
			Origin: RangeDefault,
			Err:    err,
		}
	}
	return AxisResult{Range: AxisRange{Min: info.Minimum, Max: info.Maximum}, Origin: RangeDiscovered}
}

// Tracking ids with no usable range are widened the way libevdev does.
func resolveTrackingRange(src absInfoQuerier) AxisRange {
	info, err := src.AbsInfo(absMtTrackingId)
	if err != nil || info.Maximum == info.Minimum {
		return AxisRange{Min: -1, Max: 0xFFFF}
	}
	return AxisRange{Min: info.Minimum, Max: info.Maximum}
}

///----------Virtual Device-----------///

// VirtualDeviceSpec describes the uinput device to declare.
type VirtualDeviceSpec struct {
	Name     string
	ID       InputID
	X        AxisRange
	Y        AxisRange
	Tracking AxisRange
}

func newVirtualDeviceSpec(x, y, tracking AxisRange) VirtualDeviceSpec {
	return VirtualDeviceSpec{
		Name: virtualDeviceName,
		ID: InputID{
			BusType: busVirtual,
			Vendor:  virtualDeviceVendor,
			Product: virtualDeviceProduct,
			Version: virtualDeviceVersion,
		},
		X:        x,
		Y:        y,
		Tracking: tracking,
	}
}

// UserDev builds the descriptor written before UI_DEV_CREATE. Fuzz and flat
// stay zero so values pass through the kernel untouched.
func (spec VirtualDeviceSpec) UserDev() UinputUserDev {
	var absMin [absCnt]int32
	var absMax [absCnt]int32

	absMin[absMtPositionX] = spec.X.Min
	absMax[absMtPositionX] = spec.X.Max
	absMin[absMtPositionY] = spec.Y.Min
	absMax[absMtPositionY] = spec.Y.Max
	absMin[absMtTrackingId] = spec.Tracking.Min
	absMax[absMtTrackingId] = spec.Tracking.Max

	return UinputUserDev{
		Name:    toUInputName([]byte(spec.Name)),
		ID:      spec.ID,
		AbsMax:  absMax,
		AbsMin:  absMin,
		AbsFuzz: [absCnt]int32{},
		AbsFlat: [absCnt]int32{},
	}
}

// VirtualDevice A created uinput device
type VirtualDevice struct {
	Name string
	fd   int
}

// Write writes raw bytes to the uinput fd.
func (dev *VirtualDevice) Write(p []byte) (int, error) {
	n, err := unix.Write(dev.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Close destroys the kernel device and closes the control fd.
func (dev *VirtualDevice) Close() error {
	derr := releaseDevice(dev.fd)
	cerr := unix.Close(dev.fd)
	if derr != nil {
		return derr
	}
	return cerr
}

// Create new UInput touch device with the capability set of the remapper
func createVirtualDevice(spec VirtualDeviceSpec) (*VirtualDevice, error) {
	//Open UInput
	fd, err := unix.Open(uinputPath, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &VirtualDeviceError{Op: "open " + uinputPath, Err: err}
	}

	fail := func(op string, err error) (*VirtualDevice, error) {
		_ = unix.Close(fd)
		return nil, &VirtualDeviceError{Op: op, Err: err}
	}

	//Setup event types
	for _, ev := range []int{evSyn, evKey, evAbs} {
		if err = ioctl(fd, UISETEVBIT(), uintptr(ev)); err != nil {
			return fail(fmt.Sprintf("set ev bit %#x", ev), err)
		}
	}

	//Setup EV_KEY
	for _, key := range []int{btnTouch, btnToolFinger} {
		if err = ioctl(fd, UISETKEYBIT(), uintptr(key)); err != nil {
			return fail(fmt.Sprintf("set key bit %#x", key), err)
		}
	}

	//Setup EV_ABS
	for _, abs := range []int{absMtPositionX, absMtPositionY, absMtTrackingId} {
		if err = ioctl(fd, UISETABSBIT(), uintptr(abs)); err != nil {
			return fail(fmt.Sprintf("set abs bit %#x", abs), err)
		}
	}

	//Write to Input Sub-System
	buf, err := uInputDevToBytes(spec.UserDev())
	if err != nil {
		return fail("encode user dev", err)
	}
	n, err := unix.Write(fd, buf)
	if err != nil {
		return fail("write user dev", err)
	}
	if n != len(buf) {
		return fail("write user dev", fmt.Errorf("short write %d/%d", n, len(buf)))
	}

	//Declare Input Device
	if err = createDevice(fd); err != nil {
		return fail("create device", err)
	}

	return &VirtualDevice{Name: spec.Name, fd: fd}, nil
}

func createDevice(fd int) error {
	return ioctl(fd, UIDEVCREATE(), uintptr(0))
}

func releaseDevice(fd int) error {
	return ioctl(fd, UIDEVDESTROY(), uintptr(0))
}

///----------Device Discovery-----------///

// Fetch the first direct-touch multi-touch device
func findTouchDevice() (string, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return "", err
	}

	for _, path := range paths {
		if !isCharDevice(path) {
			continue
		}
		if isTouchDevice(path) {
			return path, nil
		}
	}

	return "", errors.New("no touch device found")
}

func isTouchDevice(path string) bool {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return false
	}
	defer unix.Close(fd)

	// Read Abs data
	absBits := new([absCnt / 8]byte)
	if ioctl(fd, EVIOCGBIT(evAbs, len(absBits)), uintptr(unsafe.Pointer(absBits))) != nil {
		return false
	}

	// Read Prop data
	propBits := new([inputPropCnt / 8]byte)
	if ioctl(fd, EVIOCGPROP(), uintptr(unsafe.Pointer(propBits))) != nil {
		return false
	}

	// Read Key data
	keyBits := new([keyCnt / 8]byte)
	if ioctl(fd, EVIOCGBIT(evKey, len(keyBits)), uintptr(unsafe.Pointer(keyBits))) != nil {
		return false
	}

	// Devices with ABS_MT_SLOT - 1 aren't MT devices, libevdev:libevdev.c#L319
	return !hasBit(absBits[:], absMtSlot-1) &&
		hasBit(absBits[:], absMtSlot) &&
		hasBit(absBits[:], absMtTrackingId) &&
		hasBit(absBits[:], absMtPositionX) &&
		hasBit(absBits[:], absMtPositionY) &&
		hasBit(propBits[:], inputPropDirect) &&
		hasBit(keyBits[:], btnTouch)
}

// Determine if a path exist and is a character input device.
func isCharDevice(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}

	return fi.Mode()&os.ModeCharDevice != 0
}

// Determine if a bitmask has the specified bit set.
func hasBit(bits []byte, key int) bool {
	if key/8 >= len(bits) {
		return false
	}
	return bits[key/8]&(1<<uint(key%8)) != 0
}

///----------Bridge-----------///

type sourceDevice interface {
	absInfoQuerier
	Read(p []byte) (int, error)
	Grab() error
	Close() error
}

type virtualDevice interface {
	Write(p []byte) (int, error)
	Close() error
}

// deviceBackend opens the kernel side of the bridge.
type deviceBackend interface {
	OpenSource(path string) (sourceDevice, error)
	CreateVirtual(spec VirtualDeviceSpec) (virtualDevice, error)
}

type linuxBackend struct{}

func (linuxBackend) OpenSource(path string) (sourceDevice, error) {
	if path == autoDevicePath {
		found, err := findTouchDevice()
		if err != nil {
			return nil, &SourceOpenError{Path: path, Err: err}
		}
		path = found
	}
	return openSourceDevice(path)
}

func (linuxBackend) CreateVirtual(spec VirtualDeviceSpec) (virtualDevice, error) {
	return createVirtualDevice(spec)
}

// Bridge holds both ends of the relay and the resolved positional ranges.
type Bridge struct {
	Source  sourceDevice
	Virtual virtualDevice
	X       AxisRange
	Y       AxisRange
}

func setupBridge(cfg *Config, backend deviceBackend, log *logrus.Logger) (*Bridge, error) {
	src, err := backend.OpenSource(cfg.Device)
	if err != nil {
		log.WithError(err).Errorf("failed open input %s", cfg.Device)
		return nil, err
	}

	if cfg.Grab {
		if err := src.Grab(); err != nil {
			log.WithError(err).Warn("failed grab input, continuing shared")
		}
	}

	x := resolveAxisRange(src, absMtPositionX)
	if x.Origin == RangeDefault {
		log.WithError(x.Err).Warn("failed get abs X, using defaults")
	}
	y := resolveAxisRange(src, absMtPositionY)
	if y.Origin == RangeDefault {
		log.WithError(y.Err).Warn("failed get abs Y, using defaults")
	}
	log.Infof("abs X range: %s, Y range: %s", x.Range, y.Range)

	spec := newVirtualDeviceSpec(x.Range, y.Range, resolveTrackingRange(src))
	out, err := backend.CreateVirtual(spec)
	if err != nil {
		log.WithError(err).Error("failed setup uinput")
		_ = src.Close()
		return nil, err
	}

	return &Bridge{Source: src, Virtual: out, X: x.Range, Y: y.Range}, nil
}

// Close destroys the virtual device and closes the source.
func (b *Bridge) Close() error {
	verr := b.Virtual.Close()
	serr := b.Source.Close()
	if verr != nil {
		return verr
	}
	return serr
}
