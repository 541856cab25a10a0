package wan

import "strings"

// DefaultLabelSeparator splits "PPPoE-ISPName" into category and label.
const DefaultLabelSeparator = "-"

// Distances written by a preference switch.
const (
	PreferredDistance = 2
	FallbackDistance  = 3
)

// Interface is a WAN interface as reported by the router.
type Interface struct {
	ID       string
	Name     string
	Label    string
	Running  bool
	Disabled bool
}

// Route is a default-route candidate.
type Route struct {
	ID       string
	Gateway  string
	Distance int
	Comment  string
	Active   bool
}

// Connection is the derived per-WAN view shown on the dashboard.
type Connection struct {
	Label         string `json:"label"`
	InterfaceName string `json:"interfaceName"`
	Running       bool   `json:"running"`
	Disabled      bool   `json:"disabled"`
	Active        bool   `json:"active"`
	Preferred     bool   `json:"preferred"`
}

// Throughput is the combined rate of all WAN interfaces.
type Throughput struct {
	RxSpeed    int64                 `json:"rxSpeed"`
	TxSpeed    int64                 `json:"txSpeed"`
	Interfaces []InterfaceThroughput `json:"interfaces,omitempty"`
}

// InterfaceThroughput is the rate of a single WAN interface.
type InterfaceThroughput struct {
	InterfaceName string `json:"interfaceName"`
	RxSpeed       int64  `json:"rxSpeed"`
	TxSpeed       int64  `json:"txSpeed"`
}

// LabelOf returns the segment between the first and second separator, so
// "PPPoE-ISP-Fiber" is labelled "ISP". A name without a separator is its own
// label.
func LabelOf(name, sep string) string {
	if sep == "" {
		sep = DefaultLabelSeparator
	}
	_, rest, ok := strings.Cut(name, sep)
	if !ok {
		return name
	}
	label, _, _ := strings.Cut(rest, sep)
	return label
}
