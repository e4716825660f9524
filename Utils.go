package main

import (
	"errors"
)

// Process exit codes
const (
	exitOK            = 0
	exitArguments     = 1
	exitSourceOpen    = 2
	exitVirtualDevice = 3
)

func exitCode(err error) int {
	var argErr *ArgumentError
	var srcErr *SourceOpenError
	var virtErr *VirtualDeviceError

	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &srcErr):
		return exitSourceOpen
	case errors.As(err, &virtErr):
		return exitVirtualDevice
	case errors.As(err, &argErr):
		return exitArguments
	}
	return exitArguments
}
