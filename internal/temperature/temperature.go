// Package temperature reads a DS18B20 1-wire sensor through the kernel's
// w1_therm sysfs interface.
package temperature

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sensor reads a temperature in degrees Celsius.
type Sensor interface {
	ReadCelsius() (float64, error)
}

var (
	// ErrCRC is returned when the sensor reports a failed CRC check.
	ErrCRC = errors.New("ds18b20: crc check failed")
	// ErrMalformed is returned when the w1_slave file cannot be parsed.
	ErrMalformed = errors.New("ds18b20: malformed reading")
)

// DS18B20 reads /sys/bus/w1/devices/<id>/w1_slave.
type DS18B20 struct {
	path string
}

// NewDS18B20 creates a reader for the device id under devicesDir.
func NewDS18B20(devicesDir, id string) *DS18B20 {
	return &DS18B20{path: filepath.Join(devicesDir, id, "w1_slave")}
}

// ReadCelsius performs a conversion and returns the result.
func (s *DS18B20) ReadCelsius() (float64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.path, err)
	}
	return ParseW1Slave(data)
}

// ParseW1Slave parses the two-line w1_therm output:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func ParseW1Slave(data []byte) (float64, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))

	if !sc.Scan() {
		return 0, ErrMalformed
	}
	if !strings.HasSuffix(strings.TrimSpace(sc.Text()), "YES") {
		return 0, ErrCRC
	}

	if !sc.Scan() {
		return 0, ErrMalformed
	}
	_, raw, ok := strings.Cut(sc.Text(), "t=")
	if !ok {
		return 0, ErrMalformed
	}
	milli, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return float64(milli) / 1000, nil
}

// CToF converts Celsius to Fahrenheit.
func CToF(c float64) float64 {
	return c*9.0/5.0 + 32.0
}

// FakeSensor returns a fixed reading.
type FakeSensor struct {
	Celsius float64
	Err     error
}

// ReadCelsius returns the configured reading or error.
func (f *FakeSensor) ReadCelsius() (float64, error) {
	return f.Celsius, f.Err
}
