// device.go - Auswahl des Ausführungsgeräts

package imagegen

import (
	"fmt"
	"strings"
)

// Device is an execution target.
type Device string

const (
	DeviceAuto  Device = "auto"
	DeviceMetal Device = "metal"
	DeviceCPU   Device = "cpu"
)

// ParseDevice accepts auto, metal or cpu in any case.
func ParseDevice(s string) (Device, error) {
	switch d := Device(strings.ToLower(s)); d {
	case DeviceAuto, DeviceMetal, DeviceCPU:
		return d, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedDevice, s)
}

// DeviceSelection is the chosen device and why.
type DeviceSelection struct {
	Device Device
	Reason string
}

// SelectDevice resolves the preferred device. CPU requires allowCPU.
func SelectDevice(preferred Device, allowCPU bool) (DeviceSelection, error) {
	switch preferred {
	case DeviceAuto, "":
		return DeviceSelection{DeviceMetal, "auto→metal"}, nil
	case DeviceMetal:
		return DeviceSelection{DeviceMetal, "metal requested"}, nil
	case DeviceCPU:
		if !allowCPU {
			return DeviceSelection{}, ErrCPUNotAllowed
		}
		return DeviceSelection{DeviceCPU, "cpu requested"}, nil
	}
	return DeviceSelection{}, fmt.Errorf("%w: %s", ErrUnsupportedDevice, preferred)
}
