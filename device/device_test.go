package device

import (
	"context"
	"errors"
	"testing"

	"github.com/tombolano/modbus-client/client"
)

type call struct {
	op      string
	station uint8
	address uint16
	count   uint16
}

// fakeTransport serves canned words and bits and records every call.
type fakeTransport struct {
	calls []call
	words map[uint16]uint16
	bits  map[uint16]bool

	wroteCoil  *bool
	wroteWords []uint16
}

func (f *fakeTransport) ReadCoils(_ context.Context, station uint8, address, count uint16) ([]bool, error) {
	f.calls = append(f.calls, call{"readCoils", station, address, count})
	out := make([]bool, count)
	for i := range out {
		out[i] = f.bits[address+uint16(i)]
	}
	return out, nil
}

func (f *fakeTransport) ReadDiscreteInputs(_ context.Context, station uint8, address, count uint16) ([]bool, error) {
	f.calls = append(f.calls, call{"readDiscreteInputs", station, address, count})
	out := make([]bool, count)
	for i := range out {
		out[i] = f.bits[address+uint16(i)]
	}
	return out, nil
}

func (f *fakeTransport) ReadInputRegisters(_ context.Context, station uint8, address, count uint16) ([]uint16, error) {
	f.calls = append(f.calls, call{"readInputRegisters", station, address, count})
	out := make([]uint16, count)
	for i := range out {
		out[i] = f.words[address+uint16(i)]
	}
	return out, nil
}

func (f *fakeTransport) ReadHoldingRegisters(_ context.Context, station uint8, address, count uint16) ([]uint16, error) {
	f.calls = append(f.calls, call{"readHoldingRegisters", station, address, count})
	out := make([]uint16, count)
	for i := range out {
		out[i] = f.words[address+uint16(i)]
	}
	return out, nil
}

func (f *fakeTransport) WriteCoil(_ context.Context, station uint8, address uint16, value bool) error {
	f.calls = append(f.calls, call{"writeCoil", station, address, 1})
	f.wroteCoil = &value
	return nil
}

func (f *fakeTransport) WriteHoldingRegisters(_ context.Context, station uint8, address uint16, values []uint16) error {
	f.calls = append(f.calls, call{"writeHoldingRegisters", station, address, uint16(len(values))})
	f.wroteWords = values
	return nil
}

func (f *fakeTransport) Connect(context.Context) error { return nil }
func (f *fakeTransport) Close() error                  { return nil }

func testDevice(t *testing.T, yaml string, tr client.Transport) *Device {
	t.Helper()
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	return New(cfg, client.New(tr))
}

func TestDevice_ReadScaled(t *testing.T) {
	tr := &fakeTransport{words: map[uint16]uint16{0: 0xFFFE}}
	dev := testDevice(t, validYAML, tr)

	// temperature: input register 0, s16, scale 0.1
	v, err := dev.Read(context.Background(), "temperature")
	if err != nil {
		t.Fatalf("Read() err=%v", err)
	}
	if v != -0.2 {
		t.Fatalf("got %v, want -0.2", v)
	}
	if tr.calls[0] != (call{"readInputRegisters", 2, 0, 1}) {
		t.Fatalf("unexpected call %+v", tr.calls[0])
	}
}

func TestDevice_OneBasedAddressing(t *testing.T) {
	const yaml = `
device: meter
registers:
  - name: volts
    table: holding
    address: 101
`
	tr := &fakeTransport{words: map[uint16]uint16{100: 230}}
	dev := testDevice(t, yaml, tr)

	v, err := dev.Read(context.Background(), "volts")
	if err != nil {
		t.Fatalf("Read() err=%v", err)
	}
	if v != 230 {
		t.Fatalf("got %v, want 230", v)
	}
	if tr.calls[0].address != 100 {
		t.Fatalf("address not shifted: %+v", tr.calls[0])
	}
}

func TestDevice_UnknownName(t *testing.T) {
	dev := testDevice(t, validYAML, &fakeTransport{})

	if _, err := dev.Read(context.Background(), "nonexistent"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := dev.ReadSwitch(context.Background(), "nonexistent"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDevice_ReadAllBatches(t *testing.T) {
	const yaml = `
device: meter
zero_mode: true
registers:
  - name: a
    address: 0
  - name: b
    address: 1
  - name: c
    address: 2
  - name: d
    address: 10
`
	tr := &fakeTransport{words: map[uint16]uint16{0: 1, 1: 2, 2: 3, 10: 4}}
	dev := testDevice(t, yaml, tr)

	values, err := dev.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll() err=%v", err)
	}
	if len(tr.calls) != 2 {
		t.Fatalf("expected 2 batched reads, got %v", tr.calls)
	}
	if values["a"] != 1 || values["b"] != 2 || values["c"] != 3 || values["d"] != 4 {
		t.Fatalf("values=%v", values)
	}
}

func TestDevice_WriteEncodes(t *testing.T) {
	tr := &fakeTransport{}
	dev := testDevice(t, validYAML, tr)

	// setpoint: holding register 10, f32 low word first.
	if err := dev.Write(context.Background(), "setpoint", 1.0); err != nil {
		t.Fatalf("Write() err=%v", err)
	}
	// 1.0 as float32 is 0x3F800000: low word first puts 0x0000 first.
	if len(tr.wroteWords) != 2 || tr.wroteWords[0] != 0x0000 || tr.wroteWords[1] != 0x3F80 {
		t.Fatalf("wrote %04x", tr.wroteWords)
	}
	if tr.calls[0] != (call{"writeHoldingRegisters", 2, 10, 2}) {
		t.Fatalf("unexpected call %+v", tr.calls[0])
	}
}

func TestDevice_WriteReadOnlyRejected(t *testing.T) {
	dev := testDevice(t, validYAML, &fakeTransport{})

	if err := dev.Write(context.Background(), "temperature", 1); !errors.Is(err, client.ErrWrite) {
		t.Fatalf("expected ErrWrite for input register, got %v", err)
	}
	if err := dev.SetSwitch(context.Background(), "alarm", true); !errors.Is(err, client.ErrWrite) {
		t.Fatalf("expected ErrWrite for discrete input, got %v", err)
	}
}

func TestDevice_Switches(t *testing.T) {
	tr := &fakeTransport{bits: map[uint16]bool{3: true}}
	dev := testDevice(t, validYAML, tr)
	ctx := context.Background()

	on, err := dev.ReadSwitch(ctx, "pump")
	if err != nil {
		t.Fatalf("ReadSwitch() err=%v", err)
	}
	if !on {
		t.Fatalf("expected pump on")
	}

	if err := dev.SetSwitch(ctx, "pump", false); err != nil {
		t.Fatalf("SetSwitch() err=%v", err)
	}
	if tr.wroteCoil == nil || *tr.wroteCoil {
		t.Fatalf("expected coil written false")
	}

	// Toggle reads true then writes false.
	tr.wroteCoil = nil
	if err := dev.ToggleSwitch(ctx, "pump"); err != nil {
		t.Fatalf("ToggleSwitch() err=%v", err)
	}
	if tr.wroteCoil == nil || *tr.wroteCoil {
		t.Fatalf("expected toggle to write false")
	}
}
