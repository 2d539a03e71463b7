// Copyright (c) 2024 The Ember Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at ember-vm.github.io/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// The evm command runs and disassembles EVM bytecode against an in-memory
// world state loaded from (and optionally saved to) a JSON snapshot.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "evm",
		Usage:     "Ember EVM bytecode runner",
		Copyright: "(c) 2024 The Ember Authors",
		Commands: []*cli.Command{
			&runCommand,
			&disasmCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
