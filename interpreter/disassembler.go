// Copyright (c) 2024 The Ember Authors
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at ember-vm.github.io/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package interpreter

import (
	"fmt"
	"strings"

	"github.com/ember-vm/ember/ember"
)

// Disassemble renders the given byte code as an offset-annotated listing,
// one instruction per line, with PUSHn immediates printed inline. A PUSH
// immediate running past the end of the code is marked truncated.
func Disassemble(code ember.Code) string {
	b := strings.Builder{}
	for pc := 0; pc < len(code); pc++ {
		op := OpCode(code[pc])
		fmt.Fprintf(&b, "%6d: %v", pc, op)
		if n := op.PushSize(); n > 0 {
			end := pc + n
			if end >= len(code) {
				fmt.Fprintf(&b, " 0x%x <truncated>", []byte(code[pc+1:]))
				b.WriteString("\n")
				break
			}
			fmt.Fprintf(&b, " 0x%x", []byte(code[pc+1:end+1]))
			pc = end
		}
		b.WriteString("\n")
	}
	return b.String()
}
