package code

import (
	"fmt"
	"strings"

	"bytecraft/internal/opcode"
)

// Annotator returns an optional comment for an instruction node.
type Annotator func(i int, in *Inst) string

// Format renders a body as a text listing. When lay is non-nil each line
// carries its byte offset.
func Format(b *Body, lay *Layout, annotators ...Annotator) string {
	var sb strings.Builder
	for i := range b.Nodes {
		n := &b.Nodes[i]
		if lay != nil {
			fmt.Fprintf(&sb, "%5d  ", lay.At(i))
		}
		switch n.Kind {
		case NodeLabel:
			fmt.Fprintf(&sb, "%s:\n", n.Label)
			continue
		case NodeLine:
			fmt.Fprintf(&sb, "  .line %d %s\n", n.Line, n.Label)
			continue
		case NodeFrame:
			fmt.Fprintf(&sb, "  .frame %s\n", n.Frame)
			continue
		}
		sb.WriteString("  ")
		sb.WriteString(InstString(&n.Inst))
		for _, ann := range annotators {
			if s := ann(i, &n.Inst); s != "" {
				fmt.Fprintf(&sb, "  ; %s", s)
				break
			}
		}
		sb.WriteByte('\n')
	}
	for _, h := range b.Handlers {
		typ := h.Type
		if typ == "" {
			typ = "any"
		}
		fmt.Fprintf(&sb, "  .catch %s %s %s %s\n", typ, h.Start, h.End, h.Handler)
	}
	return sb.String()
}

// InstString renders one instruction with its operands.
func InstString(in *Inst) string {
	op := in.Op
	switch op.Kind() {
	case opcode.KindNone:
		return op.String()
	case opcode.KindByte, opcode.KindShort, opcode.KindNewArray:
		return fmt.Sprintf("%s %d", op, in.Int)
	case opcode.KindVar:
		return fmt.Sprintf("%s %d", op, in.Var)
	case opcode.KindIinc:
		return fmt.Sprintf("%s %d %d", op, in.Var, in.Int)
	case opcode.KindLdc, opcode.KindLdcWide:
		if s, ok := in.Const.(string); ok {
			return fmt.Sprintf("%s %q", op, s)
		}
		return fmt.Sprintf("%s %v", op, in.Const)
	case opcode.KindField, opcode.KindMethod, opcode.KindInterface:
		return fmt.Sprintf("%s %s.%s %s", op, in.Owner, in.Name, in.Desc)
	case opcode.KindIndy:
		return fmt.Sprintf("%s %s %s [%s]", op, in.Name, in.Desc, in.BSM)
	case opcode.KindType:
		return fmt.Sprintf("%s %s", op, in.Owner)
	case opcode.KindMultiANewArray:
		return fmt.Sprintf("%s %s %d", op, in.Owner, in.Int)
	case opcode.KindJump, opcode.KindJumpWide:
		return fmt.Sprintf("%s %s", op, in.Target)
	case opcode.KindTableSwitch:
		parts := make([]string, len(in.Targets))
		for i, t := range in.Targets {
			parts[i] = fmt.Sprintf("%d: %s", int64(in.Min)+int64(i), t)
		}
		return fmt.Sprintf("%s {%s, default: %s}", op, strings.Join(parts, ", "), in.Default)
	case opcode.KindLookupSwitch:
		parts := make([]string, len(in.Targets))
		for i, t := range in.Targets {
			parts[i] = fmt.Sprintf("%d: %s", in.Keys[i], t)
		}
		return fmt.Sprintf("%s {%s, default: %s}", op, strings.Join(parts, ", "), in.Default)
	}
	return op.String()
}
