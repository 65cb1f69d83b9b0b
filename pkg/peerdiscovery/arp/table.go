package arp

import (
	"fmt"
	"os"
	"os/exec"

	osutils "github.com/projectdiscovery/utils/os"
)

// readLocalARPTable reads the neighbor table of the running OS
func readLocalARPTable() ([]Entry, error) {
	switch {
	case osutils.IsLinux():
		data, err := os.ReadFile("/proc/net/arp")
		if err != nil {
			return nil, err
		}
		return parseProcNetARP(string(data))
	case osutils.IsWindows():
		output, err := exec.Command("arp", "-a").Output()
		if err != nil {
			return nil, fmt.Errorf("failed to execute arp -a: %w", err)
		}
		return parseWindowsArp(string(output))
	case osutils.IsOSX():
		output, err := exec.Command("arp", "-an").Output()
		if err != nil {
			return nil, fmt.Errorf("failed to execute arp -an: %w", err)
		}
		return parseBSDArp(string(output))
	}
	return nil, fmt.Errorf("unsupported OS")
}
