package host

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var errNotFound = errors.New("key not found")

// cpuinfoKeys in order of preference, ARM kernels often lack "model name"
var cpuinfoKeys = []string{"model name", "Processor", "cpu model", "Hardware"}

// ParseCPUInfo returns the CPU brand from /proc/cpuinfo content.
func ParseCPUInfo(r io.Reader) (string, error) {
	found := make(map[string]string, len(cpuinfoKeys))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, seen := found[key]; !seen {
			found[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	for _, k := range cpuinfoKeys {
		if v, ok := found[k]; ok {
			return v, nil
		}
	}
	return "", errNotFound
}

// ParseOSRelease returns VERSION, or VERSION_ID, of os-release(5) content.
func ParseOSRelease(r io.Reader) (string, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[key] = strings.Trim(value, `"'`)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	for _, k := range []string{"VERSION", "VERSION_ID"} {
		if v := values[k]; v != "" {
			return v, nil
		}
	}
	return "", errNotFound
}
