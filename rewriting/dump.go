package rewriting

import (
	"fmt"
	"github.com/cottand/rqm/types"
	"github.com/cottand/rqm/util"
	"io"
	"strings"
)

// Dump writes every rule of the system, retired ones included, followed by the
// recorded loops and any conflicts
func (s *System) Dump(w io.Writer) error {
	sb := strings.Builder{}
	sb.WriteString("Rewrite system: {\n")
	for _, rule := range s.rules {
		fmt.Fprintf(&sb, "- %s\n", rule)
	}
	sb.WriteString("}\n")
	if s.recordLoops {
		fmt.Fprintf(&sb, "Loops: %d {\n", len(s.loops))
		for _, loop := range s.loops {
			fmt.Fprintf(&sb, "- %s\n", loop)
		}
		sb.WriteString("}\n")
	}
	if len(s.conflicts) > 0 {
		sb.WriteString("Conflicts: {\n")
		for _, c := range s.conflicts {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
		sb.WriteString("}\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func (b *PropertyBag) String() string {
	var parts []string
	if len(b.ConformsTo) > 0 {
		names := util.Map(b.ConformsTo, (*types.Protocol).String)
		parts = append(parts, "conforms_to: ["+strings.Join(names, " ")+"]")
	}
	if b.HasLayout {
		parts = append(parts, "layout: "+b.Layout.String())
	}
	if b.Superclass != nil {
		parts = append(parts, "superclass: "+b.Superclass.String())
	}
	if b.Concrete != nil {
		parts = append(parts, "concrete_type: "+b.Concrete.String())
	}
	return b.Key.String() + " => { " + strings.Join(parts, " ") + " }"
}

// Dump writes one line per property bag, in key order
func (m *PropertyMap) Dump(w io.Writer) error {
	sb := strings.Builder{}
	sb.WriteString("Property map: {\n")
	for _, bag := range m.bags {
		fmt.Fprintf(&sb, "  %s\n", bag)
	}
	sb.WriteString("}\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
