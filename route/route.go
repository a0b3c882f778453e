// Package route builds the port→sinks fan-out table from a parsed output
// specification. See spec.md §4.2.
package route

import (
	"github.com/drone-os/itmsink/cliopts"
	"github.com/drone-os/itmsink/sink"
)

// Table is an immutable, fixed-size map from stimulus port number to the
// ordered list of sinks that receive that port's bytes.
type Table struct {
	ports [cliopts.PortsCount][]sink.Sink
}

// Build constructs a Table from parsed output specs and their
// correspondingly-ordered opened sinks (sinks[i] is the sink opened for
// specs[i]). A wildcard spec (empty Ports) contributes its sink to every
// port; an explicit spec contributes its sink to each listed port.
// Duplicates are preserved: the same sink may be appended twice for a
// port and is invoked twice.
func Build(specs []cliopts.OutputSpec, sinks []sink.Sink) *Table {
	t := &Table{}
	for i, spec := range specs {
		s := sinks[i]
		if len(spec.Ports) == 0 {
			for port := 0; port < cliopts.PortsCount; port++ {
				t.ports[port] = append(t.ports[port], s)
			}
			continue
		}
		for _, port := range spec.Ports {
			t.ports[port] = append(t.ports[port], s)
		}
	}
	return t
}

// SinksFor returns the ordered list of sinks registered for port. The
// caller is expected to pass a port in [0, PortsCount); port numbers
// decoded off the wire are always in range because they come from a
// 5-bit field.
func (t *Table) SinksFor(port int) []sink.Sink {
	return t.ports[port]
}
