package device

import (
	"context"
	"fmt"

	"github.com/tombolano/modbus-client/client"
)

// Device resolves names from a description and drives a client. The
// description is fixed at construction; descriptors are built per call
// and never retained.
type Device struct {
	cfg *Config
	cl  *client.Client
}

func New(cfg *Config, cl *client.Client) *Device {
	return &Device{cfg: cfg, cl: cl}
}

func (d *Device) Config() *Config { return d.cfg }

// offset converts file addressing to wire addressing: one-based
// descriptions shift every address down by one.
func (d *Device) offset() uint16 {
	if d.cfg.ZeroMode {
		return 0
	}
	return 1
}

// Register returns the descriptor for a named numeric register.
func (d *Device) Register(name string) (client.NumericRegister, error) {
	for _, r := range d.cfg.Registers {
		if r.Name != name {
			continue
		}
		// Already validated by Parse.
		table, _ := registerTable(r.Table)
		vt, _ := client.ParseValueType(r.Type)
		order, _ := parseWordOrder(r.WordOrder)
		return client.NumericRegister{
			Name:     r.Name,
			Kind:     table,
			Addr:     r.Address - d.offset(),
			Encoding: vt,
			Order:    order,
			Scale:    r.Scale,
			Unit:     r.Unit,
		}, nil
	}
	return client.NumericRegister{}, fmt.Errorf("device %s: no register named %q", d.cfg.Name, name)
}

// Switch returns the descriptor for a named switch.
func (d *Device) Switch(name string) (client.BitRegister, error) {
	for _, s := range d.cfg.Switches {
		if s.Name != name {
			continue
		}
		table, _ := switchTable(s.Type)
		return client.BitRegister{
			Name: s.Name,
			Kind: table,
			Addr: s.Address - d.offset(),
		}, nil
	}
	return client.BitRegister{}, fmt.Errorf("device %s: no switch named %q", d.cfg.Name, name)
}

// Read reads one named register and returns its engineering-unit value.
func (d *Device) Read(ctx context.Context, name string) (float64, error) {
	reg, err := d.Register(name)
	if err != nil {
		return 0, err
	}
	ses, err := d.cl.ReadRegisters(ctx, client.ReadRequest{
		Station:   d.cfg.Station,
		Registers: []client.Register{reg},
	})
	if err != nil {
		return 0, err
	}
	return reg.Value(ses)
}

// ReadAll reads every named numeric register in one batched operation.
func (d *Device) ReadAll(ctx context.Context) (map[string]float64, error) {
	regs := make([]client.NumericRegister, 0, len(d.cfg.Registers))
	all := make([]client.Register, 0, len(d.cfg.Registers))
	for _, rc := range d.cfg.Registers {
		reg, err := d.Register(rc.Name)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
		all = append(all, reg)
	}

	ses, err := d.cl.ReadRegisters(ctx, client.ReadRequest{
		Station:    d.cfg.Station,
		Registers:  all,
		AllowHoles: true,
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(regs))
	for _, reg := range regs {
		v, err := reg.Value(ses)
		if err != nil {
			return nil, err
		}
		out[reg.Name] = v
	}
	return out, nil
}

// Write writes one named holding register.
func (d *Device) Write(ctx context.Context, name string, value float64) error {
	reg, err := d.Register(name)
	if err != nil {
		return err
	}
	if reg.Kind != client.HoldingRegister {
		return fmt.Errorf("%w: %s is a read-only %s", client.ErrWrite, name, reg.Kind)
	}
	words, err := reg.EncodeValue(value)
	if err != nil {
		return err
	}
	return d.cl.WriteHoldingRegisters(ctx, d.cfg.Station, reg.Addr, words)
}

// ReadSwitch reads one named bit.
func (d *Device) ReadSwitch(ctx context.Context, name string) (bool, error) {
	sw, err := d.Switch(name)
	if err != nil {
		return false, err
	}
	ses, err := d.cl.ReadRegisters(ctx, client.ReadRequest{
		Station:   d.cfg.Station,
		Registers: []client.Register{sw},
	})
	if err != nil {
		return false, err
	}
	return sw.Value(ses)
}

// SetSwitch writes one named coil.
func (d *Device) SetSwitch(ctx context.Context, name string, on bool) error {
	sw, err := d.Switch(name)
	if err != nil {
		return err
	}
	if sw.Kind != client.Coil {
		return fmt.Errorf("%w: %s is a read-only %s", client.ErrWrite, name, sw.Kind)
	}
	return d.cl.WriteCoil(ctx, d.cfg.Station, sw.Addr, on)
}

// ToggleSwitch flips one named coil. Read and write are two separate
// bus operations, so a toggle is not atomic.
func (d *Device) ToggleSwitch(ctx context.Context, name string) error {
	cur, err := d.ReadSwitch(ctx, name)
	if err != nil {
		return err
	}
	return d.SetSwitch(ctx, name, !cur)
}
