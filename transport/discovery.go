package transport

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port a bench controller may be attached to.
type PortInfo struct {
	Path         string
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	// Vendor names the USB serial bridge when its vendor ID is a known one.
	Vendor string
}

// benchBridgeVendors are the USB vendor IDs of the serial bridges bench controllers ship with.
var benchBridgeVendors = map[string]string{
	"0403": "FTDI",
	"10C4": "Silicon Labs",
	"1A86": "WCH",
	"0483": "STMicroelectronics",
	"2341": "Arduino",
}

// DiscoverSerialPorts lists the USB serial ports a bench controller may sit behind, known
// bridge vendors first.
func DiscoverSerialPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate serial ports")
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		vid := strings.ToUpper(d.VID)
		ports = append(ports, PortInfo{
			Path:         d.Name,
			Name:         portLabel(d.Name),
			IsUSB:        d.IsUSB,
			VID:          vid,
			PID:          strings.ToUpper(d.PID),
			SerialNumber: d.SerialNumber,
			Vendor:       benchBridgeVendors[vid],
		})
	}
	return candidatePorts(ports), nil
}

// candidatePorts keeps USB serial ports and orders known bridge vendors first. On macOS a
// dial-in tty.* node is dropped when its cu.* call-out twin is present, since opening the tty
// blocks until carrier detect.
func candidatePorts(ports []PortInfo) []PortInfo {
	callout := map[string]bool{}
	for _, p := range ports {
		if rest, ok := strings.CutPrefix(p.Path, "/dev/cu."); ok {
			callout[rest] = true
		}
	}

	out := []PortInfo{}
	for _, p := range ports {
		if !p.IsUSB && !usbDevicePath(p.Path) {
			continue
		}
		if rest, ok := strings.CutPrefix(p.Path, "/dev/tty."); ok && callout[rest] {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Vendor != "" && out[j].Vendor == ""
	})
	return out
}

// usbDevicePath recognizes USB serial device nodes by name, for enumerators that report no
// USB details.
func usbDevicePath(path string) bool {
	for _, prefix := range []string{
		"/dev/ttyUSB", "/dev/ttyACM",
		"/dev/cu.usbmodem", "/dev/cu.usbserial", "/dev/tty.usbmodem", "/dev/tty.usbserial",
	} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// portLabel shortens a device path for display: /dev/cu.usbserial-A5 becomes usbserial-A5.
func portLabel(path string) string {
	base := filepath.Base(path)
	for _, prefix := range []string{"tty.", "cu."} {
		if rest, ok := strings.CutPrefix(base, prefix); ok {
			return rest
		}
	}
	return base
}
