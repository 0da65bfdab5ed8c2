package reqmachine

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes the input the machine was built from, its rewrite system, its
// property map and the conformance access paths section. Access paths are never
// computed, so that section is always empty.
func (m *Machine) Dump(w io.Writer) error {
	if _, err := io.WriteString(w, m.header()+"\n"); err != nil {
		return err
	}
	if err := m.system.Dump(w); err != nil {
		return err
	}
	if err := m.pmap.Dump(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "Conformance access paths: {\n}\n")
	return err
}

func (m *Machine) header() string {
	sb := strings.Builder{}
	sb.WriteString("Requirement machine for ")
	switch {
	case m.sig != nil:
		sb.WriteString(m.sig.String())
	case len(m.params) > 0:
		sb.WriteString("fresh signature")
		for _, p := range m.params {
			sb.WriteString(" " + p.String())
		}
	case len(m.protos) > 0:
		sb.WriteString("protocols [")
		for _, p := range m.protos {
			sb.WriteString(" " + p.Name)
		}
		sb.WriteString(" ]")
	default:
		fmt.Fprintf(&sb, "nothing (%s)", m.state)
	}
	return sb.String()
}
