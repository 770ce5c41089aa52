// modbusctl reads and writes named registers of one Modbus device
// described by a YAML device file.
//
// Usage:
//
//	modbusctl -device plant.yaml -tcp 10.0.0.5:502 read temperature pressure
//	modbusctl -device plant.yaml -tcp 10.0.0.5:502 read
//	modbusctl -device plant.yaml -rtu /dev/ttyUSB0 -baud 9600 write setpoint 21.5
//	modbusctl -device plant.yaml -tcp 10.0.0.5:502 switch pump on|off|toggle|get
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tombolano/modbus-client/client"
	"github.com/tombolano/modbus-client/device"
)

func main() {
	var (
		deviceFile = flag.String("device", "", "device description file (YAML)")
		tcpAddr    = flag.String("tcp", "", "Modbus TCP address (host:port)")
		rtuPort    = flag.String("rtu", "", "Modbus RTU serial device")
		baudRate   = flag.Int("baud", client.DefaultBaudRate, "RTU baud rate")
		parity     = flag.String("parity", client.DefaultParity, "RTU parity (N, E, O)")
		stopBits   = flag.Int("stopbits", client.DefaultStopBits, "RTU stop bits")
		timeout    = flag.Duration("timeout", 5*time.Second, "request timeout")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	if *deviceFile == "" || flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: modbusctl -device <file> (-tcp addr | -rtu port) <read|write|switch> ...")
		os.Exit(2)
	}

	cfg, err := device.Load(*deviceFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("device description load failed")
	}

	var conn *client.Conn
	switch {
	case *tcpAddr != "":
		conn = client.NewTCP(client.TCPConfig{Address: *tcpAddr, Timeout: *timeout, Logger: logger})
	case *rtuPort != "":
		conn = client.NewRTU(client.RTUConfig{
			Device:   *rtuPort,
			BaudRate: *baudRate,
			Parity:   *parity,
			StopBits: *stopBits,
			Timeout:  *timeout,
			Logger:   logger,
		})
	default:
		logger.Fatal().Msg("one of -tcp or -rtu is required")
	}

	ctx := context.Background()

	if err := conn.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("connect failed")
	}
	defer conn.Close()

	dev := device.New(cfg, client.New(conn))

	if err := run(ctx, dev, flag.Args()); err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}

func run(ctx context.Context, dev *device.Device, args []string) error {
	switch args[0] {
	case "read":
		if len(args) == 1 {
			return readAll(ctx, dev)
		}
		for _, name := range args[1:] {
			v, err := dev.Read(ctx, name)
			if err != nil {
				return err
			}
			printValue(dev, name, v)
		}
		return nil

	case "write":
		if len(args) != 3 {
			return fmt.Errorf("usage: write <name> <value>")
		}
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", args[2], err)
		}
		return dev.Write(ctx, args[1], v)

	case "switch":
		if len(args) != 3 {
			return fmt.Errorf("usage: switch <name> <on|off|toggle|get>")
		}
		name := args[1]
		switch args[2] {
		case "on":
			return dev.SetSwitch(ctx, name, true)
		case "off":
			return dev.SetSwitch(ctx, name, false)
		case "toggle":
			return dev.ToggleSwitch(ctx, name)
		case "get":
			v, err := dev.ReadSwitch(ctx, name)
			if err != nil {
				return err
			}
			fmt.Printf("%s = %v\n", name, v)
			return nil
		}
		return fmt.Errorf("unknown switch action %q", args[2])
	}

	return fmt.Errorf("unknown command %q", args[0])
}

func readAll(ctx context.Context, dev *device.Device) error {
	values, err := dev.ReadAll(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		printValue(dev, name, values[name])
	}
	return nil
}

func printValue(dev *device.Device, name string, v float64) {
	reg, err := dev.Register(name)
	if err == nil && reg.Unit != "" {
		fmt.Printf("%s = %v %s\n", name, v, reg.Unit)
		return
	}
	fmt.Printf("%s = %v\n", name, v)
}
