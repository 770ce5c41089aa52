package client

import "fmt"

type sessionKey struct {
	kind RegisterType
	addr uint16
}

// ReadSession holds the raw units produced by one batched read
// operation: one bit or one 16-bit word per (table, address) pair.
// The client populates it during ReadRegisters; afterwards it is
// read-only and owned by the caller. It is not safe for concurrent
// mutation.
type ReadSession struct {
	bits  map[sessionKey]bool
	words map[sessionKey]uint16
}

func NewReadSession() *ReadSession {
	return &ReadSession{
		bits:  make(map[sessionKey]bool),
		words: make(map[sessionKey]uint16),
	}
}

// PutBit records one coil or discrete-input bit.
func (s *ReadSession) PutBit(kind RegisterType, addr uint16, v bool) {
	s.bits[sessionKey{kind, addr}] = v
}

// PutWord records one input- or holding-register word.
func (s *ReadSession) PutWord(kind RegisterType, addr uint16, v uint16) {
	s.words[sessionKey{kind, addr}] = v
}

// Bit returns the bit read at addr. ErrMissingData means no executed
// range covered the address.
func (s *ReadSession) Bit(kind RegisterType, addr uint16) (bool, error) {
	v, ok := s.bits[sessionKey{kind, addr}]
	if !ok {
		return false, fmt.Errorf("%w: %s %d", ErrMissingData, kind, addr)
	}
	return v, nil
}

// Word returns the word read at addr. ErrMissingData means no executed
// range covered the address.
func (s *ReadSession) Word(kind RegisterType, addr uint16) (uint16, error) {
	v, ok := s.words[sessionKey{kind, addr}]
	if !ok {
		return 0, fmt.Errorf("%w: %s %d", ErrMissingData, kind, addr)
	}
	return v, nil
}
