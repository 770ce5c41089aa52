package client

// Defaults shared by the transport adapters and the read orchestrator.
const (
	DefaultStation     uint8  = 1
	DefaultMaxReadSize uint16 = 100

	// MaxHoleSize caps the run of unrequested words one merged read may
	// bridge when holes are allowed. Bridged words are read and
	// discarded; past this size a gap ends the range and the next
	// registers get their own read.
	MaxHoleSize uint16 = 4
	DefaultBaudRate           = 19200
	DefaultDataBits           = 8
	DefaultParity             = "N"
	DefaultStopBits           = 1
)
