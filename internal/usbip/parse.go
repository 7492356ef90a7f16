// Package usbip drives the usbip client tooling and parses its output.
package usbip

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDeviceNotFound is returned when no row of usbip output matches the device.
var ErrDeviceNotFound = errors.New("no matching USB device")

// DeviceID identifies a USB device by vendor and product ID.
type DeviceID struct {
	Vendor  string
	Product string
}

func (d DeviceID) String() string {
	return d.Vendor + ":" + d.Product
}

// ParseRemoteList extracts the bus ID of the device from `usbip list -r` output.
//
// The relevant rows look like:
//
//	Exportable USB devices
//	======================
//	 - 192.168.1.2
//	      1-1.4: Olimex Ltd. : ARM-USB-TINY-H JTAG interface (15ba:002b)
//	           : /sys/devices/platform/soc/usb1/1-1/1-1.4
//	           : (Defined at Interface level) (00/00/00)
func ParseRemoteList(output string, id DeviceID) (string, error) {
	marker := "(" + id.String() + ")"

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasSuffix(line, marker) {
			continue
		}

		busID, _, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		// Continuation rows also start with a colon; a bus ID never
		// contains spaces and is never empty.
		busID = strings.TrimSpace(busID)
		if busID == "" || strings.Contains(busID, " ") {
			continue
		}

		return busID, nil
	}

	return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}

// ParsePorts extracts the local port the device is imported on from
// `usbip port` output.
//
// The relevant rows look like:
//
//	Imported USB devices
//	====================
//	Port 00: <Port in Use> at High Speed(480Mbps)
//	       Olimex Ltd. : ARM-USB-TINY-H JTAG interface (15ba:002b)
//	       1-1 -> usbip://192.168.1.2:3240/1-1.4
func ParsePorts(output string, id DeviceID) (string, error) {
	marker := "(" + id.String() + ")"
	port := ""

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)

		rest, ok := strings.CutPrefix(line, "Port ")
		if ok {
			num, _, found := strings.Cut(rest, ":")
			if found {
				port = strings.TrimSpace(num)
			}

			continue
		}

		if port != "" && strings.HasSuffix(line, marker) {
			return port, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}
