package arp

import (
	"bufio"
	"strings"
)

// parseProcNetARP parses /proc/net/arp:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.1.1      0x1         0x2         aa:bb:cc:dd:ee:ff     *        eth0
func parseProcNetARP(data string) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(strings.NewReader(data))

	// Skip header line
	if !scanner.Scan() {
		return entries, scanner.Err()
	}

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		// flags 0x0 is an incomplete entry
		if fields[2] == "0x0" {
			continue
		}
		if entry, ok := newEntry(fields[0], fields[3]); ok {
			entries = append(entries, entry)
		}
	}
	return entries, scanner.Err()
}

// parseBSDArp parses "arp -a" output on macOS and the BSDs:
//
//	? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
func parseBSDArp(output string) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(strings.NewReader(output))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		_, rest, found := strings.Cut(line, "(")
		if !found {
			continue
		}
		ipStr, rest, found := strings.Cut(rest, ")")
		if !found {
			continue
		}
		_, rest, found = strings.Cut(rest, " at ")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		if entry, ok := newEntry(ipStr, padMAC(fields[0])); ok {
			entries = append(entries, entry)
		}
	}
	return entries, scanner.Err()
}

// parseWindowsArp parses "arp -a" output on Windows:
//
//	Interface: 192.168.1.100 --- 0xa
//	  Internet Address      Physical Address      Type
//	  192.168.1.1           aa-bb-cc-dd-ee-ff     dynamic
func parseWindowsArp(output string) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(strings.NewReader(output))

	inTable := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "Interface:"):
			inTable = false
			continue
		case strings.Contains(line, "Internet Address") && strings.Contains(line, "Physical Address"):
			inTable = true
			continue
		case !inTable:
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if entry, ok := newEntry(fields[0], strings.ReplaceAll(fields[1], "-", ":")); ok {
			entries = append(entries, entry)
		}
	}
	return entries, scanner.Err()
}

// padMAC restores the leading zeros macOS drops ("0:1b:2:..." -> "00:1b:02:...")
func padMAC(mac string) string {
	octets := strings.Split(mac, ":")
	for i, octet := range octets {
		if len(octet) == 1 {
			octets[i] = "0" + octet
		}
	}
	return strings.Join(octets, ":")
}
