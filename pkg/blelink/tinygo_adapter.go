package blelink

import (
	"context"
	"fmt"

	"tinygo.org/x/bluetooth"
)

// tinygoAdapter implements Adapter over a real BLE controller via
// tinygo.org/x/bluetooth, the teacher pack's chosen hardware-BLE library
// for anything beyond the chaz8081 reference's abstraction shape.
type tinygoAdapter struct {
	adapter *bluetooth.Adapter
}

// NewTinygoAdapter wraps the platform's default BLE adapter.
func NewTinygoAdapter() Adapter {
	return &tinygoAdapter{adapter: bluetooth.DefaultAdapter}
}

func (a *tinygoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return fmt.Errorf("blelink: enable adapter: %w", err)
	}
	return nil
}

func (a *tinygoAdapter) Scan(ctx context.Context, handler func(Advertisement)) error {
	done := make(chan error, 1)
	go func() {
		done <- a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			handler(Advertisement{
				Address:          result.Address.String(),
				LocalName:        result.LocalName(),
				ManufacturerData: extractManufacturerData(result),
			})
		})
	}()

	select {
	case <-ctx.Done():
		_ = a.adapter.StopScan()
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("blelink: scan: %w", err)
		}
		return nil
	}
}

func (a *tinygoAdapter) StopScan() error {
	if err := a.adapter.StopScan(); err != nil {
		return fmt.Errorf("blelink: stop scan: %w", err)
	}
	return nil
}

func (a *tinygoAdapter) Connect(ctx context.Context, address string) (Device, error) {
	addr, err := bluetooth.ParseMAC(address)
	if err != nil {
		return nil, fmt.Errorf("blelink: parse address %q: %w", address, err)
	}

	device, err := a.adapter.Connect(bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: addr}}, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("blelink: connect %q: %w", address, err)
	}
	return &tinygoDevice{device: device}, nil
}

func extractManufacturerData(result bluetooth.ScanResult) []byte {
	for _, entry := range result.AdvertisementPayload.ManufacturerData() {
		return entry.Data
	}
	return nil
}

type tinygoDevice struct {
	device bluetooth.Device
}

func (d *tinygoDevice) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("blelink: parse service uuid: %w", err)
	}
	chrUUID, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, fmt.Errorf("blelink: parse characteristic uuid: %w", err)
	}

	services, err := d.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("blelink: discover service: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("blelink: service %s not found", serviceUUID)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{chrUUID})
	if err != nil {
		return nil, fmt.Errorf("blelink: discover characteristic: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("blelink: characteristic %s not found", charUUID)
	}
	return &tinygoCharacteristic{char: chars[0]}, nil
}

func (d *tinygoDevice) Disconnect() error {
	if err := d.device.Disconnect(); err != nil {
		return fmt.Errorf("blelink: disconnect: %w", err)
	}
	return nil
}

type tinygoCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *tinygoCharacteristic) Subscribe(onNotify func([]byte)) error {
	return c.char.EnableNotifications(func(buf []byte) {
		onNotify(append([]byte{}, buf...))
	})
}

func (c *tinygoCharacteristic) Write(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}
