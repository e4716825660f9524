package main

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

func testLogger(w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	logger.SetOutput(w)
	return logger
}

func mustEncode(t *testing.T, ev InputEvent) []byte {
	t.Helper()
	b, err := inputEventToBytes(ev)
	if err != nil {
		t.Fatalf("encode %+v: %v", ev, err)
	}
	return b
}

func mustDecode(t *testing.T, b []byte) InputEvent {
	t.Helper()
	ev, err := bytesToInputEvent(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

// fakeSource replays chunks, one per Read. A nil chunk reads as EAGAIN.
type fakeSource struct {
	chunks  [][]byte
	abs     map[int]AbsInfo
	onDrain func()
	grabbed bool
	closed  bool
}

func (s *fakeSource) Read(p []byte) (int, error) {
	if len(s.chunks) == 0 {
		if s.onDrain != nil {
			s.onDrain()
		}
		return 0, unix.EAGAIN
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	if c == nil {
		return 0, unix.EAGAIN
	}
	return copy(p, c), nil
}

func (s *fakeSource) AbsInfo(code int) (AbsInfo, error) {
	info, ok := s.abs[code]
	if !ok {
		return AbsInfo{}, unix.EINVAL
	}
	return info, nil
}

func (s *fakeSource) Grab() error {
	s.grabbed = true
	return nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeSink records every write. Writes whose index is in short transfer one
// byte less than asked.
type fakeSink struct {
	writes [][]byte
	short  map[int]bool
	calls  int
	closed bool
}

func (s *fakeSink) Write(p []byte) (int, error) {
	idx := s.calls
	s.calls++
	if s.short[idx] {
		return len(p) - 1, nil
	}
	s.writes = append(s.writes, bytes.Clone(p))
	return len(p), nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type fakeBackend struct {
	source    *fakeSource
	sink      *fakeSink
	openErr   error
	createErr error
	opened    string
	spec      *VirtualDeviceSpec
}

func (b *fakeBackend) OpenSource(path string) (sourceDevice, error) {
	b.opened = path
	if b.openErr != nil {
		return nil, &SourceOpenError{Path: path, Err: b.openErr}
	}
	return b.source, nil
}

func (b *fakeBackend) CreateVirtual(spec VirtualDeviceSpec) (virtualDevice, error) {
	b.spec = &spec
	if b.createErr != nil {
		return nil, &VirtualDeviceError{Op: "create device", Err: b.createErr}
	}
	return b.sink, nil
}

var errNoDevice = errors.New("no such device")
