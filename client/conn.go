package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"
)

// TCPConfig configures a Modbus TCP connection.
type TCPConfig struct {
	Address string        // host:port
	Timeout time.Duration // per-request timeout
	Logger  zerolog.Logger
}

// RTUConfig configures a Modbus RTU serial connection.
type RTUConfig struct {
	Device   string // serial device path
	BaudRate int    // default 19200
	DataBits int    // default 8
	Parity   string // "N", "E" or "O", default "N"
	StopBits int    // default 1
	Timeout  time.Duration
	Logger   zerolog.Logger
}

// Conn adapts the blocking goburrow/modbus client to the Transport
// contract. Every call is funneled through one worker goroutine, so a
// Conn never has two requests in flight: serial lines and single TCP
// sessions do not tolerate interleaved frames. Cancelling a call's
// context abandons the wait but lets the in-flight request finish on
// the worker, keeping the stream framed.
type Conn struct {
	mb       modbus.Client
	setSlave func(byte)
	connect  func() error
	closeFn  func() error
	log      zerolog.Logger

	tasks chan task
	quit  chan struct{}
	once  sync.Once
}

type task struct {
	fn   func() error
	done chan error
}

// NewTCP returns an unconnected Modbus TCP transport.
func NewTCP(cfg TCPConfig) *Conn {
	h := modbus.NewTCPClientHandler(cfg.Address)
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	log := cfg.Logger.With().Str("transport", "tcp").Str("address", cfg.Address).Logger()
	return newConn(modbus.NewClient(h), func(id byte) { h.SlaveId = id }, h.Connect, h.Close, log)
}

// NewRTU returns an unconnected Modbus RTU transport.
func NewRTU(cfg RTUConfig) *Conn {
	h := modbus.NewRTUClientHandler(cfg.Device)
	h.BaudRate = cfg.BaudRate
	if h.BaudRate == 0 {
		h.BaudRate = DefaultBaudRate
	}
	h.DataBits = cfg.DataBits
	if h.DataBits == 0 {
		h.DataBits = DefaultDataBits
	}
	h.Parity = cfg.Parity
	if h.Parity == "" {
		h.Parity = DefaultParity
	}
	h.StopBits = cfg.StopBits
	if h.StopBits == 0 {
		h.StopBits = DefaultStopBits
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	log := cfg.Logger.With().Str("transport", "rtu").Str("device", cfg.Device).Logger()
	return newConn(modbus.NewClient(h), func(id byte) { h.SlaveId = id }, h.Connect, h.Close, log)
}

func newConn(mb modbus.Client, setSlave func(byte), connect, closeFn func() error, log zerolog.Logger) *Conn {
	c := &Conn{
		mb:       mb,
		setSlave: setSlave,
		connect:  connect,
		closeFn:  closeFn,
		log:      log,
		tasks:    make(chan task),
		quit:     make(chan struct{}),
	}
	go c.worker()
	return c
}

func (c *Conn) worker() {
	for {
		select {
		case <-c.quit:
			return
		case t := <-c.tasks:
			t.done <- t.fn()
		}
	}
}

// do runs fn on the worker, preserving strict one-at-a-time ordering.
func (c *Conn) do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case c.tasks <- t:
	case <-c.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		// The task still completes on the worker; its result is dropped.
		return ctx.Err()
	}
}

// Connect opens the underlying handler.
func (c *Conn) Connect(ctx context.Context) error {
	return c.do(ctx, func() error {
		if err := c.connect(); err != nil {
			c.log.Error().Err(err).Msg("connect failed")
			return err
		}
		c.log.Debug().Msg("connected")
		return nil
	})
}

// Close closes the underlying handler and stops the worker. It blocks
// until any in-flight request has finished. Safe to call more than
// once; calls after the first return nil.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		// The handler close runs on the worker like any other call,
		// so an in-flight request always finishes first.
		t := task{fn: c.closeFn, done: make(chan error, 1)}
		c.tasks <- t
		err = <-t.done
		close(c.quit)
		c.log.Debug().Msg("closed")
	})
	return err
}

func (c *Conn) ReadCoils(ctx context.Context, station uint8, address, count uint16) ([]bool, error) {
	return c.readBits(ctx, station, address, count, c.mb.ReadCoils, "coils")
}

func (c *Conn) ReadDiscreteInputs(ctx context.Context, station uint8, address, count uint16) ([]bool, error) {
	return c.readBits(ctx, station, address, count, c.mb.ReadDiscreteInputs, "discrete inputs")
}

func (c *Conn) ReadInputRegisters(ctx context.Context, station uint8, address, count uint16) ([]uint16, error) {
	return c.readWords(ctx, station, address, count, c.mb.ReadInputRegisters, "input registers")
}

func (c *Conn) ReadHoldingRegisters(ctx context.Context, station uint8, address, count uint16) ([]uint16, error) {
	return c.readWords(ctx, station, address, count, c.mb.ReadHoldingRegisters, "holding registers")
}

func (c *Conn) WriteCoil(ctx context.Context, station uint8, address uint16, value bool) error {
	var v uint16
	if value {
		v = 0xFF00
	}
	err := c.do(ctx, func() error {
		c.setSlave(station)
		_, err := c.mb.WriteSingleCoil(address, v)
		return err
	})
	if err != nil {
		c.log.Debug().Err(err).Uint8("station", station).Uint16("address", address).Msg("write coil failed")
	}
	return err
}

// WriteHoldingRegisters writes one word with the single-register
// primitive and longer runs with the multi-register one.
func (c *Conn) WriteHoldingRegisters(ctx context.Context, station uint8, address uint16, values []uint16) error {
	err := c.do(ctx, func() error {
		c.setSlave(station)
		var err error
		if len(values) == 1 {
			_, err = c.mb.WriteSingleRegister(address, values[0])
		} else {
			_, err = c.mb.WriteMultipleRegisters(address, uint16(len(values)), packWords(values))
		}
		return err
	})
	if err != nil {
		c.log.Debug().Err(err).Uint8("station", station).Uint16("address", address).Int("count", len(values)).Msg("write registers failed")
	}
	return err
}

func (c *Conn) readBits(ctx context.Context, station uint8, address, count uint16, read func(uint16, uint16) ([]byte, error), what string) ([]bool, error) {
	var out []bool
	err := c.do(ctx, func() error {
		c.setSlave(station)
		raw, err := read(address, count)
		if err != nil {
			return err
		}
		if len(raw) < (int(count)+7)/8 {
			return fmt.Errorf("short payload: %d bytes for %d bits", len(raw), count)
		}
		out = unpackBits(raw, int(count))
		return nil
	})
	if err != nil {
		c.log.Debug().Err(err).Uint8("station", station).Uint16("address", address).Uint16("count", count).Msg("read " + what + " failed")
		return nil, err
	}
	return out, nil
}

func (c *Conn) readWords(ctx context.Context, station uint8, address, count uint16, read func(uint16, uint16) ([]byte, error), what string) ([]uint16, error) {
	var out []uint16
	err := c.do(ctx, func() error {
		c.setSlave(station)
		raw, err := read(address, count)
		if err != nil {
			return err
		}
		if len(raw) != 2*int(count) {
			return fmt.Errorf("short payload: %d bytes for %d words", len(raw), count)
		}
		out = unpackWords(raw)
		return nil
	})
	if err != nil {
		c.log.Debug().Err(err).Uint8("station", station).Uint16("address", address).Uint16("count", count).Msg("read " + what + " failed")
		return nil, err
	}
	return out, nil
}

// ---- wire packing helpers ----

func unpackBits(data []byte, count int) []bool {
	out := make([]bool, count)
	for i := range out {
		out[i] = data[i/8]&(1<<uint(i%8)) != 0
	}
	return out
}

func unpackWords(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}

func packWords(regs []uint16) []byte {
	out := make([]byte, 2*len(regs))
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
