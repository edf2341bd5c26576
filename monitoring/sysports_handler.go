package monitoring

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"chy506r/serial"
)

// SysPortInfo contains system-level serial port information
type SysPortInfo struct {
	Device  string `json:"device"`
	UART    string `json:"uart,omitempty"`
	Port    string `json:"port,omitempty"`
	IRQ     int    `json:"irq,omitempty"`
	TX      int64  `json:"tx"`
	RX      int64  `json:"rx"`
	Signals string `json:"signals,omitempty"`
	Active  bool   `json:"active"`
	InUse   bool   `json:"in_use"`
}

// SysPortsHandler lists the serial ports a thermometer could be attached to
type SysPortsHandler struct {
	source    Source
	listPorts func() ([]string, error)
	procPath  string
}

// NewSysPortsHandler creates a new system ports handler
func NewSysPortsHandler(source Source) *SysPortsHandler {
	return &SysPortsHandler{
		source:    source,
		listPorts: serial.ListPorts,
		procPath:  "/proc/tty/driver/serial",
	}
}

// ServeHTTP handles system port info requests
func (h *SysPortsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ports, err := h.getPorts()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"ports": ports,
	})
}

// getPorts merges enumerated devices with UART counters where the kernel exposes them
func (h *SysPortsHandler) getPorts() ([]SysPortInfo, error) {
	names, err := h.listPorts()
	if err != nil {
		return nil, err
	}

	uarts := map[string]SysPortInfo{}
	if file, err := os.Open(h.procPath); err == nil {
		uarts = parseUARTs(file)
		file.Close()
	}

	var inUse string
	if s := h.source(); s != nil && s.Running() {
		inUse = s.Stats().Device
	}

	ports := make([]SysPortInfo, 0, len(names))
	for _, name := range names {
		info, ok := uarts[name]
		if !ok {
			info = SysPortInfo{Device: name}
		}
		info.InUse = name == inUse
		ports = append(ports, info)
	}
	return ports, nil
}

// Example: "4: uart:16550A port:000002F0 irq:7 tx:1195 rx:1170 CTS|DSR|CD"
var uartLine = regexp.MustCompile(`^\s*(\d+):\s+uart:(\S+)\s+port:([0-9A-Fa-f]+)\s+irq:(\d+)\s+tx:(\d+)\s+rx:(\d+)(.*)$`)

func parseUARTs(r io.Reader) map[string]SysPortInfo {
	ports := map[string]SysPortInfo{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		matches := uartLine.FindStringSubmatch(scanner.Text())
		if len(matches) < 7 || matches[2] == "unknown" {
			continue
		}

		portNum, _ := strconv.Atoi(matches[1])
		irq, _ := strconv.Atoi(matches[4])
		tx, _ := strconv.ParseInt(matches[5], 10, 64)
		rx, _ := strconv.ParseInt(matches[6], 10, 64)
		signals := strings.TrimSpace(matches[7])

		// Remote device present, or traffic seen in both directions
		hasRemoteSignals := strings.Contains(signals, "CTS") ||
			strings.Contains(signals, "DSR") ||
			strings.Contains(signals, "CD")

		device := "/dev/ttyS" + strconv.Itoa(portNum)
		ports[device] = SysPortInfo{
			Device:  device,
			UART:    matches[2],
			Port:    "0x" + strings.ToUpper(matches[3]),
			IRQ:     irq,
			TX:      tx,
			RX:      rx,
			Signals: signals,
			Active:  hasRemoteSignals || (tx > 0 && rx > 0),
		}
	}

	return ports
}
