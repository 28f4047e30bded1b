package domain

// Label keys persisted on every managed container. The runtime's label
// store is the only durable record of an instance; nothing is kept in
// process memory between calls.
const (
	LabelManaged = "craftbay.managed"
	LabelPort    = "craftbay.port"
	LabelVersion = "craftbay.version"
)

// State is the runtime-derived lifecycle state of an instance.
type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Instance represents a user's dedicated game-server container.
// Exactly zero or one instance exists per owner; the owner id doubles
// as the container name.
type Instance struct {
	Owner   string `json:"owner"`
	ID      string `json:"id"`
	Port    int    `json:"port"`
	Version string `json:"version"`
	State   State  `json:"state"`
}

// Players holds live player counts reported by a running server.
type Players struct {
	Online int `json:"online"`
	Max    int `json:"max"`
}

// StatusReport is the result of querying an instance. Port and Status are
// always set. The remaining fields are only populated when the server is
// running and answered the status probe; a stopped or still-booting server
// has nothing more to report.
type StatusReport struct {
	Port        int      `json:"port"`
	Status      string   `json:"status"`
	Version     string   `json:"version,omitempty"`
	Players     *Players `json:"players,omitempty"`
	Description string   `json:"description,omitempty"`
	RAMUsage    uint64   `json:"ram_usage,omitempty"`
}

// Report status values beyond the plain container states.
const (
	// StatusStarting is reported for a running container whose server
	// process is not yet answering the status protocol. A booting server
	// is a normal transient condition, not an error.
	StatusStarting = "starting"
)

// ServerStatus is the response of a status-protocol exchange with a live
// game server.
type ServerStatus struct {
	Version     string
	Description string
	Players     Players
}
