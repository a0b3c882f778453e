// Package cliopts parses itmsink's OUTPUT positional arguments.
//
// Grammar (spec.md §6): PORTS[:PATH], where PORTS is either the literal word
// "all" or a comma-separated list of decimal stimulus port numbers in
// [0, PortsCount), and PATH is a filesystem path. Omitting ":PATH" means
// standard output.
package cliopts

import (
	"strconv"
	"strings"

	"github.com/drone-os/itmsink/itmerr"
)

// PortsCount is the number of ITM stimulus ports, a compile-time constant.
const PortsCount = 32

// OutputSpec is one parsed OUTPUT argument.
type OutputSpec struct {
	// Ports selected by this spec. An empty slice means "all ports" (the
	// wildcard spelled "all").
	Ports []int
	// Path to a file, or "" for standard output.
	Path string
}

// DefaultSpecs is used when no OUTPUT arguments are given: all ports to
// standard output.
func DefaultSpecs() []OutputSpec {
	return []OutputSpec{{}}
}

// Parse parses a single OUTPUT argument.
func Parse(arg string) (OutputSpec, error) {
	portsPart, pathPart, hasPath := strings.Cut(arg, ":")

	ports, err := parsePorts(portsPart)
	if err != nil {
		return OutputSpec{}, itmerr.NewCliParseError("parsing output spec "+strconv.Quote(arg), err)
	}

	spec := OutputSpec{Ports: ports}
	if hasPath {
		spec.Path = pathPart
	}
	return spec, nil
}

// ParseAll parses every OUTPUT argument, defaulting to DefaultSpecs() if
// args is empty.
func ParseAll(args []string) ([]OutputSpec, error) {
	if len(args) == 0 {
		return DefaultSpecs(), nil
	}
	specs := make([]OutputSpec, 0, len(args))
	for _, arg := range args {
		spec, err := Parse(arg)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parsePorts(src string) ([]int, error) {
	if src == "all" {
		return nil, nil
	}
	parts := strings.Split(src, ",")
	ports := make([]int, 0, len(parts))
	for _, p := range parts {
		port, err := parsePort(p)
		if err != nil {
			return nil, err
		}
		ports = append(ports, port)
	}
	return ports, nil
}

func parsePort(src string) (int, error) {
	port, err := strconv.Atoi(src)
	if err != nil {
		return 0, err
	}
	if port < 0 || port >= PortsCount {
		return 0, portRangeError{port}
	}
	return port, nil
}

type portRangeError struct{ port int }

func (e portRangeError) Error() string {
	if e.port < 0 {
		return "stimulus port number can't be negative, got " + strconv.Itoa(e.port)
	}
	return "stimulus port number can't be greater than " + strconv.Itoa(PortsCount-1) +
		", got " + strconv.Itoa(e.port)
}
