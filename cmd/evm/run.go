// Copyright (c) 2024 The Ember Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at ember-vm.github.io/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"

	"github.com/ember-vm/ember/ember"
	"github.com/ember-vm/ember/interpreter"
	"github.com/ember-vm/ember/state"
)

var runCommand = cli.Command{
	Name:      "run",
	Usage:     "run EVM bytecode and print the result",
	ArgsUsage: "<code-hex | @code-file>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "input",
			Usage: "call data as a hex string",
		},
		&cli.StringFlag{
			Name:  "state",
			Usage: "JSON world snapshot to load",
		},
		&cli.StringFlag{
			Name:  "save-state",
			Usage: "write the post-run world snapshot to this file",
		},
		&cli.StringFlag{
			Name:  "origin",
			Usage: "transaction origin address",
			Value: "0x0000000000000000000000000000000000000064",
		},
		&cli.StringFlag{
			Name:  "address",
			Usage: "address the code is deployed at",
			Value: "0x00000000000000000000000000000000000000c8",
		},
		&cli.Uint64Flag{
			Name:  "value",
			Usage: "call value",
		},
		&cli.BoolFlag{
			Name:  "trace",
			Usage: "print an instruction trace to stderr",
		},
	},
	Action: runAction,
}

var disasmCommand = cli.Command{
	Name:      "disasm",
	Usage:     "print a disassembly of the given code",
	ArgsUsage: "<code-hex | @code-file>",
	Action:    disasmAction,
}

func readCode(ctx *cli.Context) (ember.Code, error) {
	arg := ctx.Args().First()
	if arg == "" {
		return nil, fmt.Errorf("missing code argument")
	}
	if strings.HasPrefix(arg, "@") {
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, err
		}
		arg = strings.TrimSpace(string(data))
	}
	return decodeHex(arg)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

func parseAddress(s string) (ember.Address, error) {
	var addr ember.Address
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	err := addr.UnmarshalText([]byte(s))
	return addr, err
}

func runAction(ctx *cli.Context) error {
	code, err := readCode(ctx)
	if err != nil {
		return err
	}

	var input []byte
	if s := ctx.String("input"); s != "" {
		if input, err = decodeHex(s); err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}
	}

	world := state.NewWorld(ember.Block{})
	if path := ctx.String("state"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, world); err != nil {
			return fmt.Errorf("invalid state snapshot: %w", err)
		}
	}

	origin, err := parseAddress(ctx.String("origin"))
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}
	address, err := parseAddress(ctx.String("address"))
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}

	callee := world.Get(address)
	if !callee.HasCode() {
		callee = world.Create(address, ember.Value{}, code)
	}

	sink := &ember.VectorLogSink{}
	tx := ember.NewTransaction(origin, sink, ctx.Uint64("value"), 0, 0)

	var tracer interpreter.Tracer
	if ctx.Bool("trace") {
		tracer = interpreter.NewLoggingTracer(os.Stderr)
	}

	result := interpreter.New(world, interpreter.Config{}).
		Run(tx, origin, callee, input, ctx.Uint64("value"), tracer)

	fmt.Printf("exit:   %v\n", result.Reason)
	if result.Err != nil {
		fmt.Printf("error:  %v: %s\n", result.Err.Kind, result.Err.Message)
	}
	fmt.Printf("output: 0x%x\n", result.Output)
	for i, entry := range sink.Logs {
		fmt.Printf("log %d:  %v topics=%v data=0x%x\n", i, entry.Address, entry.Topics, entry.Data)
	}
	fmt.Printf("code:   %sB, accounts: %d\n",
		unitconv.FormatPrefix(float64(len(code)), unitconv.SI, 1), world.NumAccounts())

	if path := ctx.String("save-state"); path != "" {
		data, err := json.MarshalIndent(world, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func disasmAction(ctx *cli.Context) error {
	code, err := readCode(ctx)
	if err != nil {
		return err
	}
	fmt.Print(interpreter.Disassemble(code))
	fmt.Printf("%s instructions, %sB of code\n",
		unitconv.FormatPrefix(countInstructions(code), unitconv.SI, 0),
		unitconv.FormatPrefix(float64(len(code)), unitconv.SI, 1))
	return nil
}

func countInstructions(code ember.Code) float64 {
	count := 0
	for pc := 0; pc < len(code); pc++ {
		count++
		pc += interpreter.OpCode(code[pc]).PushSize()
	}
	return float64(count)
}
