// Package client reads and writes sets of Modbus registers through the
// minimum number of batched transport calls. It merges requested
// registers into contiguous address ranges per table, issues one read
// per range and decodes typed values from the collected raw words and
// bits. The wire protocol itself is owned by a Transport implementation.
package client

import (
	"context"
	"fmt"
)

// Transport is the batched read/write capability the client drives: one
// primitive per register table plus connection lifecycle. Every call
// addresses one station on the bus. Implementations must serialize
// calls internally if the underlying connection cannot interleave
// requests; Conn in this package does.
type Transport interface {
	ReadCoils(ctx context.Context, station uint8, address, count uint16) ([]bool, error)
	ReadDiscreteInputs(ctx context.Context, station uint8, address, count uint16) ([]bool, error)
	ReadInputRegisters(ctx context.Context, station uint8, address, count uint16) ([]uint16, error)
	ReadHoldingRegisters(ctx context.Context, station uint8, address, count uint16) ([]uint16, error)
	WriteCoil(ctx context.Context, station uint8, address uint16, value bool) error
	WriteHoldingRegisters(ctx context.Context, station uint8, address uint16, values []uint16) error
	Connect(ctx context.Context) error
	Close() error
}

// ReadRequest names the registers one batched read should cover and the
// batching policy for the word-addressed tables.
type ReadRequest struct {
	Station    uint8
	Registers  []Register
	AllowHoles bool // bridge holes of up to MaxHoleSize words per read

	// MaxReadSize caps the word count of one read; 0 means
	// DefaultMaxReadSize. Bit tables ignore it (see ReadRegisters).
	MaxReadSize uint16
}

// Client turns register sets into batched transport reads and decodes
// the results. It holds no state between operations and performs no
// internal locking: two concurrent operations on the same Client must
// be serialized by the caller.
type Client struct {
	tr Transport
}

func New(tr Transport) *Client {
	return &Client{tr: tr}
}

// Connect opens the underlying transport.
func (c *Client) Connect(ctx context.Context) error {
	return c.tr.Connect(ctx)
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.tr.Close()
}

// ReadRegisters merges the requested registers into ranges per table,
// reads each range sequentially in ascending address order and folds
// the raw units into a session at their true addresses. The first
// failed read aborts the whole operation; no partial session is ever
// returned.
//
// Coils and discrete inputs are always merged without holes and one bit
// per range: the wire packing of unrequested bits is undefined for
// sparse sets and scattered bits rarely share a round-trip anyway. The
// word tables follow the request's AllowHoles and MaxReadSize.
func (c *Client) ReadRegisters(ctx context.Context, req ReadRequest) (*ReadSession, error) {
	maxRead := req.MaxReadSize
	if maxRead == 0 {
		maxRead = DefaultMaxReadSize
	}

	ses := NewReadSession()

	for _, kind := range registerTypes {
		var regs []Register
		for _, r := range req.Registers {
			if r.Type() == kind {
				regs = append(regs, r)
			}
		}

		allowHoles, span := req.AllowHoles, maxRead
		if kind.IsBit() {
			allowHoles, span = false, 1
		}

		for _, rng := range MergeAddressRanges(regs, allowHoles, span) {
			if err := c.readRange(ctx, req.Station, kind, rng, ses); err != nil {
				return nil, err
			}
		}
	}

	return ses, nil
}

func (c *Client) readRange(ctx context.Context, station uint8, kind RegisterType, rng AddressRange, ses *ReadSession) error {
	if kind.IsBit() {
		read := c.tr.ReadCoils
		if kind == DiscreteInput {
			read = c.tr.ReadDiscreteInputs
		}
		bits, err := read(ctx, station, rng.Address, rng.Count)
		if err != nil {
			return fmt.Errorf("%w: %s %d+%d: %w", ErrRead, kind, rng.Address, rng.Count, err)
		}
		if len(bits) != int(rng.Count) {
			return fmt.Errorf("%w: %s %d+%d: got %d bits", ErrRead, kind, rng.Address, rng.Count, len(bits))
		}
		for i, v := range bits {
			ses.PutBit(kind, rng.Address+uint16(i), v)
		}
		return nil
	}

	read := c.tr.ReadInputRegisters
	if kind == HoldingRegister {
		read = c.tr.ReadHoldingRegisters
	}
	words, err := read(ctx, station, rng.Address, rng.Count)
	if err != nil {
		return fmt.Errorf("%w: %s %d+%d: %w", ErrRead, kind, rng.Address, rng.Count, err)
	}
	if len(words) != int(rng.Count) {
		return fmt.Errorf("%w: %s %d+%d: got %d words", ErrRead, kind, rng.Address, rng.Count, len(words))
	}
	for i, v := range words {
		ses.PutWord(kind, rng.Address+uint16(i), v)
	}
	return nil
}

// WriteCoil writes one bit. Writes bypass merging: this is a direct
// pass-through to the transport's single-coil primitive.
func (c *Client) WriteCoil(ctx context.Context, station uint8, address uint16, value bool) error {
	if err := c.tr.WriteCoil(ctx, station, address, value); err != nil {
		return fmt.Errorf("%w: coil %d: %w", ErrWrite, address, err)
	}
	return nil
}

// WriteHoldingRegisters writes one or more consecutive words starting
// at address.
func (c *Client) WriteHoldingRegisters(ctx context.Context, station uint8, address uint16, values []uint16) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: holding register %d: no values", ErrWrite, address)
	}
	if err := c.tr.WriteHoldingRegisters(ctx, station, address, values); err != nil {
		return fmt.Errorf("%w: holding register %d+%d: %w", ErrWrite, address, len(values), err)
	}
	return nil
}
