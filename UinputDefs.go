package main

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/lunixbochs/struc"
	"golang.org/x/sys/unix"
)

//---------------------------------EVCodes--------------------------------------//

// Ref: input-event-codes.h
const (
	evSyn           = 0x00
	evKey           = 0x01
	evAbs           = 0x03
	synReport       = 0
	btnToolFinger   = 0x145
	btnTouch        = 0x14a
	absMtSlot       = 0x2f
	absMtPositionX  = 0x35
	absMtPositionY  = 0x36
	absMtTrackingId = 0x39
	evMax           = 0x1f
	absMax          = 0x3f
	absCnt          = absMax + 1
	keyMax          = 0x2ff
	keyCnt          = keyMax + 1
	inputPropDirect = 0x01
	inputPropMax    = 0x1f
	inputPropCnt    = inputPropMax + 1
	busVirtual      = 0x06
)

//---------------------------------IOCTL--------------------------------------//

// Ref: ioctl.h
const (
	iocNone  = 0x0
	iocWrite = 0x1
	iocRead  = 0x2

	iocNrbits   = 8
	iocTypebits = 8
	iocSizebits = 14
	iocNrshift  = 0

	iocTypeshift = iocNrshift + iocNrbits
	iocSizeshift = iocTypeshift + iocTypebits
	iocDirshift  = iocSizeshift + iocSizebits
)

func _IOC(dir int, t int, nr int, size int) int {
	return (dir << iocDirshift) | (t << iocTypeshift) |
		(nr << iocNrshift) | (size << iocSizeshift)
}

func _IOR(t int, nr int, size int) int {
	return _IOC(iocRead, t, nr, size)
}

func _IOW(t int, nr int, size int) int {
	return _IOC(iocWrite, t, nr, size)
}

// Ref: input.h
func EVIOCGPROP() int {
	return _IOC(iocRead, 'E', 0x09, inputPropCnt/8)
}

func EVIOCGABS(abs int) int {
	return _IOR('E', 0x40+abs, int(unsafe.Sizeof(AbsInfo{})))
}

func EVIOCGBIT(ev, len int) int {
	return _IOC(iocRead, 'E', 0x20+ev, len)
}

func EVIOCGRAB() int {
	return _IOW('E', 0x90, 4) //sizeof(int)
}

// Syscall
func ioctl(fd int, name int, data uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(name), data)
	if errno != 0 {
		return errno
	}
	return nil
}

//---------------------------------Input--------------------------------------//

type InputID struct {
	BusType uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type AbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// InputEvent mirrors struct input_event. Its layout is the wire format of
// both the evdev node and /dev/uinput.
type InputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

var eventSize = int(unsafe.Sizeof(InputEvent{}))

// kernel structs are laid out in host byte order
var abiOptions = &struc.Options{Order: binary.NativeEndian}

func inputEventToBytes(event InputEvent) ([]byte, error) {
	var buf bytes.Buffer
	if err := struc.PackWithOptions(&buf, &event, abiOptions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bytesToInputEvent(b []byte) (InputEvent, error) {
	event := InputEvent{}
	err := struc.UnpackWithOptions(bytes.NewReader(b), &event, abiOptions)
	return event, err
}

//---------------------------------UInput--------------------------------------//

// Ref: uinput.h
const (
	uinputMaxNameSize = 80
	uinputPath        = "/dev/uinput"
)

type UinputUserDev struct {
	Name       [uinputMaxNameSize]byte
	ID         InputID
	EffectsMax uint32
	AbsMax     [absCnt]int32
	AbsMin     [absCnt]int32
	AbsFuzz    [absCnt]int32
	AbsFlat    [absCnt]int32
}

func toUInputName(name []byte) [uinputMaxNameSize]byte {
	var fixedSizeName [uinputMaxNameSize]byte
	copy(fixedSizeName[:uinputMaxNameSize-1], name)
	return fixedSizeName
}

func uInputDevToBytes(uiDev UinputUserDev) ([]byte, error) {
	var buf bytes.Buffer
	if err := struc.PackWithOptions(&buf, &uiDev, abiOptions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Ref: uinput.h
func UISETEVBIT() int {
	return _IOW('U', 100, 4) //sizeof(int)
}

func UISETKEYBIT() int {
	return _IOW('U', 101, 4) //sizeof(int)
}

func UISETABSBIT() int {
	return _IOW('U', 103, 4) //sizeof(int)
}

func UIDEVCREATE() int {
	return _IOC(iocNone, 'U', 1, 0)
}

func UIDEVDESTROY() int {
	return _IOC(iocNone, 'U', 2, 0)
}
