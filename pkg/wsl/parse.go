package wsl

import (
	"strings"
	"unicode/utf16"
)

// decodeConsoleOutput converts raw wsl.exe output to a plain string.
// wsl.exe writes UTF-16LE to pipes; other host tools write plain bytes.
// A BOM or embedded NUL bytes identify the UTF-16 case.
func decodeConsoleOutput(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFF && raw[1] == 0xFE {
		raw = raw[2:]
		return decodeUTF16LE(raw)
	}
	if strings.ContainsRune(string(raw), '\x00') {
		return decodeUTF16LE(raw)
	}
	return string(raw)
}

func decodeUTF16LE(raw []byte) string {
	if len(raw)%2 == 1 {
		raw = raw[:len(raw)-1]
	}
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		units = append(units, uint16(raw[i])|uint16(raw[i+1])<<8)
	}
	return string(utf16.Decode(units))
}

// parseList parses `wsl --list --verbose` output into instances.
// Expected shape:
//
//	  NAME        STATE      VERSION
//	* Ubuntu      Running    2
//	  wslforge    Stopped    2
//
// The header line and blank lines are skipped. A leading '*' marks the
// default instance.
func parseList(out string) []Instance {
	var instances []Instance
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		isDefault := false
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "*") {
			isDefault = true
			trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "*"))
		}
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}
		// Column header line.
		if strings.EqualFold(fields[0], "NAME") {
			continue
		}
		inst := Instance{Name: fields[0], Default: isDefault}
		if len(fields) > 1 {
			inst.Running = strings.EqualFold(fields[1], "Running")
		}
		instances = append(instances, inst)
	}
	return instances
}
