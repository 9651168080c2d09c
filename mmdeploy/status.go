package mmdeploy

import "fmt"

// Status is the integer code an engine returns from create and apply verbs.
// Zero means success; every other value is an engine-specific failure and is
// treated uniformly as failure by the binding layer.
type Status int32

const (
	StatusSuccess      Status = 0
	StatusInvalidArg   Status = 1
	StatusNotSupported Status = 2
	StatusOutOfRange   Status = 3
	StatusOutOfMemory  Status = 4
	StatusFileNotExist Status = 5
	StatusFail         Status = 6
)

// OK reports whether s is the success code.
func (s Status) OK() bool { return s == StatusSuccess }

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInvalidArg:
		return "invalid argument"
	case StatusNotSupported:
		return "not supported"
	case StatusOutOfRange:
		return "out of range"
	case StatusOutOfMemory:
		return "out of memory"
	case StatusFileNotExist:
		return "file not exist"
	case StatusFail:
		return "fail"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}
