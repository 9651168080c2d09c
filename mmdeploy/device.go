package mmdeploy

import (
	"fmt"
	"strconv"
	"strings"
)

// Device selects the backend an engine context runs on: a device class name
// understood by the engine ("cpu", "cuda", ...) and an ordinal.
type Device struct {
	Name string
	ID   int
}

// CPU is the first CPU device.
var CPU = Device{Name: "cpu"}

// CUDA returns the CUDA device with the given ordinal.
func CUDA(id int) Device {
	return Device{Name: "cuda", ID: id}
}

// ParseDevice parses "name" or "name:id", e.g. "cpu" or "cuda:1".
func ParseDevice(s string) (Device, error) {
	name, idStr, hasID := strings.Cut(strings.TrimSpace(s), ":")
	d := Device{Name: strings.ToLower(name)}
	if hasID {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return Device{}, fmt.Errorf("mmdeploy: bad device ordinal %q: %w", idStr, err)
		}
		d.ID = id
	}
	if err := d.validate(); err != nil {
		return Device{}, err
	}
	return d, nil
}

func (d Device) String() string {
	return d.Name + ":" + strconv.Itoa(d.ID)
}

func (d Device) validate() error {
	if d.Name == "" {
		return fmt.Errorf("mmdeploy: empty device name")
	}
	if d.ID < 0 {
		return fmt.Errorf("mmdeploy: negative device ordinal %d", d.ID)
	}
	return nil
}
