// Package gpio backs platform.OutputPin, the GPIO half of the hardware
// abstraction layer spec.md §1 calls out of scope for the core and leaves
// to the application. It replaces the original firmware's direct port
// register pokes (original_source/src/hal/hal_gpio.c's P1OUT/P1DIR writes)
// with a real Linux GPIO character device, grounded on
// doismellburning-samoyed's use of warthog618/go-gpiocdev.
package gpio

import "github.com/warthog618/go-gpiocdev"

// Pin drives a single line on a /dev/gpiochipN device as an output,
// standing in for hal_gpio_set/hal_gpio_reset against one port bit.
type Pin struct {
	line *gpiocdev.Line
}

// Open requests offset as an output line on chip (e.g. "gpiochip0"),
// starting low — the reset state hal_gpio_init leaves a freshly configured
// output pin in.
func Open(chip string, offset int) (*Pin, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, err
	}
	return &Pin{line: line}, nil
}

// Set asserts or clears the line, the Go analogue of
// hal_gpio_set/hal_gpio_reset.
func (p *Pin) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	return p.line.SetValue(v)
}

// Close releases the underlying line request.
func (p *Pin) Close() error { return p.line.Close() }
