// Package onewire reads DS18B20 temperature probes through the Linux w1 sysfs interface.
package onewire

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DS18B20 family code prefix in w1 device names.
const familyPrefix = "28-"

var (
	// ErrNoProbe is returned when no DS18B20 is present under the devices path.
	ErrNoProbe = errors.New("onewire: no DS18B20 probe found")

	// ErrCRC is returned when the w1_slave scratchpad fails its CRC check.
	ErrCRC = errors.New("onewire: crc check failed")

	// ErrBadValue is returned when a reading cannot be parsed.
	ErrBadValue = errors.New("onewire: unparseable reading")
)

// Probe reads one DS18B20 from sysfs.
type Probe struct {
	devicesPath string
	deviceID    string
}

// NewProbe returns a probe under devicesPath. An empty deviceID selects the
// first DS18B20 present at read time, so a probe plugged in later is found.
func NewProbe(devicesPath, deviceID string) *Probe {
	return &Probe{devicesPath: devicesPath, deviceID: deviceID}
}

// ReadCelsius returns the current temperature. It blocks for the sensor's
// conversion; wrap the probe in Cached to read it from a control loop.
func (p *Probe) ReadCelsius() (float64, error) {
	dir, err := p.deviceDir()
	if err != nil {
		return 0, err
	}

	// Newer kernels expose a plain millidegree value.
	if data, err := os.ReadFile(filepath.Join(dir, "temperature")); err == nil {
		return parseMilli(strings.TrimSpace(string(data)))
	}

	f, err := os.Open(filepath.Join(dir, "w1_slave"))
	if err != nil {
		return 0, fmt.Errorf("open probe: %w", err)
	}
	defer f.Close()

	return parseSlave(f)
}

// DeviceID returns the probe in use, resolving the first present one if none was configured.
func (p *Probe) DeviceID() (string, error) {
	dir, err := p.deviceDir()
	if err != nil {
		return "", err
	}
	return filepath.Base(dir), nil
}

func (p *Probe) deviceDir() (string, error) {
	if p.deviceID != "" {
		return filepath.Join(p.devicesPath, p.deviceID), nil
	}

	matches, err := filepath.Glob(filepath.Join(p.devicesPath, familyPrefix+"*"))
	if err != nil {
		return "", fmt.Errorf("scan devices: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNoProbe
	}
	sort.Strings(matches)
	return matches[0], nil
}

// parseSlave parses the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseSlave(f *os.File) (float64, error) {
	scanner := bufio.NewScanner(f)

	if !scanner.Scan() {
		return 0, ErrBadValue
	}
	if !strings.HasSuffix(strings.TrimSpace(scanner.Text()), "YES") {
		return 0, ErrCRC
	}

	if !scanner.Scan() {
		return 0, ErrBadValue
	}
	line := scanner.Text()
	i := strings.LastIndex(line, "t=")
	if i < 0 {
		return 0, ErrBadValue
	}
	return parseMilli(line[i+2:])
}

func parseMilli(s string) (float64, error) {
	milli, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadValue, s)
	}
	return float64(milli) / 1000, nil
}
