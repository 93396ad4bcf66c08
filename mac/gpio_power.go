package mac

/*------------------------------------------------------------------
 *
 * Purpose: Drive a radio's power-enable and transmit/receive-select pins
 *		from a Linux GPIO character device.
 *
 * Description: The teacher's src/cm108.go toggles a PTT line through a USB
 *		HID's GPIO report rather than a native GPIO controller, to
 *		key an external transceiver's microphone input around each
 *		transmission. An 802.15.4 radio wired to a single-board
 *		computer's header pins instead exposes that same on/transmit/
 *		receive switching as ordinary GPIO lines, so this is grounded
 *		on the same "assert before sending, deassert after" shape but
 *		driven through github.com/warthog618/go-gpiocdev instead of a
 *		raw hidraw ioctl.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RadioPower is the subset of RadioDriver's on/off switching a GPIO-backed
// radio needs, separated out so it can be composed onto a RadioDriver that
// otherwise talks to the radio over SPI/UART.
type RadioPower interface {
	PowerOn() error
	PowerOff() error
	Close() error
}

// GPIOPowerConfig names which chip and lines control a radio's power-enable
// and active-high transmit-select pins.
type GPIOPowerConfig struct {
	Chip         string // e.g. "gpiochip0"
	PowerLine    int
	TxSelectLine int
}

// GPIORadioPower toggles a radio's power-enable line and its transmit/
// receive select line through a Linux GPIO character device.
type GPIORadioPower struct {
	power    *gpiocdev.Line
	txSelect *gpiocdev.Line
}

// NewGPIORadioPower requests both lines as outputs, initially deasserted
// (radio off, receive-selected).
func NewGPIORadioPower(cfg GPIOPowerConfig) (*GPIORadioPower, error) {
	power, err := gpiocdev.RequestLine(cfg.Chip, cfg.PowerLine, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("requesting power line %d on %s: %w", cfg.PowerLine, cfg.Chip, err)
	}
	txSelect, err := gpiocdev.RequestLine(cfg.Chip, cfg.TxSelectLine, gpiocdev.AsOutput(0))
	if err != nil {
		power.Close()
		return nil, fmt.Errorf("requesting tx-select line %d on %s: %w", cfg.TxSelectLine, cfg.Chip, err)
	}
	return &GPIORadioPower{power: power, txSelect: txSelect}, nil
}

// PowerOn asserts the power-enable line.
func (g *GPIORadioPower) PowerOn() error {
	return g.power.SetValue(1)
}

// PowerOff deasserts the power-enable line, also deselecting transmit so a
// subsequent PowerOn always comes up receive-selected.
func (g *GPIORadioPower) PowerOff() error {
	if err := g.txSelect.SetValue(0); err != nil {
		return err
	}
	return g.power.SetValue(0)
}

// SelectTransmit asserts the transmit-select line for the duration of one
// CCA-then-transmit attempt (spec section 3's CSMA-CA transmission window),
// the GPIO analogue of the teacher's PTT key/unkey pair around a frame.
func (g *GPIORadioPower) SelectTransmit() error {
	return g.txSelect.SetValue(1)
}

// SelectReceive deasserts the transmit-select line.
func (g *GPIORadioPower) SelectReceive() error {
	return g.txSelect.SetValue(0)
}

// Close releases both GPIO line requests.
func (g *GPIORadioPower) Close() error {
	err1 := g.txSelect.Close()
	err2 := g.power.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
