// Package engine defines the container engine boundary: the descriptors the
// monitor reads and the errors the engine can fail with.
package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
)

// State is a container lifecycle state as reported by the engine.
type State string

const (
	StateCreated    State = "created"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateRestarting State = "restarting"
	StateRemoving   State = "removing"
	StateExited     State = "exited"
	StateDead       State = "dead"
)

// ParseState normalizes an engine state string. Unknown values are kept
// lower-cased so they still show up in the dashboard.
func ParseState(s string) State {
	return State(strings.ToLower(strings.TrimSpace(s)))
}

// Running reports whether the container is executing.
func (s State) Running() bool {
	return s == StateRunning
}

// Port is one published or exposed container port.
type Port struct {
	IP          string `json:"ip,omitempty"`
	PrivatePort uint16 `json:"privatePort"`
	PublicPort  uint16 `json:"publicPort,omitempty"`
	Protocol    string `json:"protocol"`
}

// String renders the binding the way `docker ps` does, e.g.
// "0.0.0.0:8080->80/tcp" or "80/tcp" for an unpublished port.
func (p Port) String() string {
	proto := p.Protocol
	if proto == "" {
		proto = "tcp"
	}
	port, err := nat.NewPort(proto, strconv.Itoa(int(p.PrivatePort)))
	if err != nil {
		return fmt.Sprintf("%d/%s", p.PrivatePort, proto)
	}
	if p.PublicPort == 0 {
		return string(port)
	}
	host := p.IP
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d->%s", host, p.PublicPort, port)
}

// ContainerDescriptor is one entry of a container listing.
type ContainerDescriptor struct {
	ID      string
	Name    string
	Image   string
	State   State
	Status  string
	Labels  map[string]string
	Created time.Time
	Ports   []Port
}

// ContainerDetails carries the inspect fields the listing does not expose.
type ContainerDetails struct {
	ID        string
	State     State
	StartedAt time.Time
	TTY       bool
}

// ShortID truncates an engine id to the 12 characters the CLI shows.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
