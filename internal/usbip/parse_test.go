package usbip_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/McbyX/Deeploy/internal/usbip"
)

var gap9Probe = usbip.DeviceID{Vendor: "15ba", Product: "002b"}

var remoteList = `Exportable USB devices
======================
 - 192.168.1.2
      1-1.4: Olimex Ltd. : ARM-USB-TINY-H JTAG interface (15ba:002b)
           : /sys/devices/platform/soc/usb1/1-1/1-1.4
           : (Defined at Interface level) (00/00/00)
      1-1.2: Logitech, Inc. : Unifying Receiver (046d:c52b)
           : /sys/devices/platform/soc/usb1/1-1/1-1.2
           : (Defined at Interface level) (00/00/00)
`

var portList = `Imported USB devices
====================
Port 00: <Port in Use> at High Speed(480Mbps)
       Olimex Ltd. : ARM-USB-TINY-H JTAG interface (15ba:002b)
       1-1 -> usbip://192.168.1.2:3240/1-1.4
           -> remote bus/dev 001/005
Port 01: <Port in Use> at Full Speed(12Mbps)
       Logitech, Inc. : Unifying Receiver (046d:c52b)
       1-2 -> usbip://192.168.1.2:3240/1-1.2
           -> remote bus/dev 001/006
`

func TestParseRemoteList(t *testing.T) {
	t.Parallel()

	busID, err := usbip.ParseRemoteList(remoteList, gap9Probe)
	require.NoError(t, err)
	require.Equal(t, "1-1.4", busID)

	busID, err = usbip.ParseRemoteList(remoteList, usbip.DeviceID{Vendor: "046d", Product: "c52b"})
	require.NoError(t, err)
	require.Equal(t, "1-1.2", busID)
}

func TestParseRemoteListNoMatch(t *testing.T) {
	t.Parallel()

	_, err := usbip.ParseRemoteList(remoteList, usbip.DeviceID{Vendor: "dead", Product: "beef"})
	require.ErrorIs(t, err, usbip.ErrDeviceNotFound)

	_, err = usbip.ParseRemoteList("", gap9Probe)
	require.ErrorIs(t, err, usbip.ErrDeviceNotFound)
}

func TestParseRemoteListIgnoresDriftedRows(t *testing.T) {
	t.Parallel()

	// A sysfs continuation row mentioning the ID must never be taken for a
	// device row.
	drifted := `      : something odd (15ba:002b)
usbip: error: failed to open (15ba:002b)
`

	_, err := usbip.ParseRemoteList(drifted, gap9Probe)
	require.ErrorIs(t, err, usbip.ErrDeviceNotFound)
}

func TestParsePorts(t *testing.T) {
	t.Parallel()

	port, err := usbip.ParsePorts(portList, gap9Probe)
	require.NoError(t, err)
	require.Equal(t, "00", port)

	port, err = usbip.ParsePorts(portList, usbip.DeviceID{Vendor: "046d", Product: "c52b"})
	require.NoError(t, err)
	require.Equal(t, "01", port)
}

func TestParsePortsNotAttached(t *testing.T) {
	t.Parallel()

	_, err := usbip.ParsePorts("Imported USB devices\n====================\n", gap9Probe)
	require.ErrorIs(t, err, usbip.ErrDeviceNotFound)
}

func TestClientCommandLines(t *testing.T) {
	t.Parallel()

	var got [][]string

	client := &usbip.Client{
		Host: "192.168.1.2",
		Run: func(_ context.Context, name string, args ...string) (string, error) {
			got = append(got, append([]string{name}, args...))

			return "", nil
		},
	}

	ctx := context.Background()

	_, err := client.ListRemote(ctx)
	require.NoError(t, err)

	err = client.Attach(ctx, "1-1.4")
	require.NoError(t, err)

	err = client.Detach(ctx, "00")
	require.NoError(t, err)

	require.Equal(t, [][]string{
		{"usbip", "list", "-r", "192.168.1.2"},
		{"usbip", "attach", "-r", "192.168.1.2", "-b", "1-1.4"},
		{"usbip", "detach", "-p", "00"},
	}, got)
}
