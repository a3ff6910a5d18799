// Package coordsvc implements the Coordination Service (spec.md §4.4):
// the single authoritative, in-memory store of VM state and experiment
// timing, exposed over gRPC. Grounded on cuemby-warren/pkg/api/server.go
// for the server-wraps-a-store-plus-grpc.Server shape, but with the mTLS
// cert plumbing dropped (spec.md's Non-goals exclude a hardened cluster
// security story) and the generated proto client/server replaced by a
// hand-written grpc.ServiceDesc over a JSON wire codec (see codec.go) —
// no generated proto client/server package was available to build
// against, so this package talks structs over JSON instead of
// generated protobuf messages.
package coordsvc

import (
	"time"

	"github.com/sandialabs/firewheel-core/pkg/vmstate"
)

// VMMapping is the wire and storage representation of one VM's entry
// in a db's mapping table (spec.md §6 "VMMapping").
type VMMapping struct {
	DB          string        `json:"db"`
	ServerUUID  string        `json:"server_uuid"`
	ServerName  string        `json:"server_name"`
	ControlIP   string        `json:"control_ip"`
	State       vmstate.State `json:"state"`
	CurrentTime string        `json:"current_time"`
}

// Empty is the response shape for RPCs with no meaningful reply
// (DestroyVMMappingByUUID, DestroyAllVMMappings, ClearDb).
type Empty struct{}

// GetInfoRequest carries no fields.
type GetInfoRequest struct{}

// GetInfoResponse answers GetInfo (spec.md §6).
type GetInfoResponse struct {
	Version           string  `json:"version"`
	UptimeSeconds     float64 `json:"uptime"`
	ExperimentRunning bool    `json:"experiment_running"`
}

// DBRequest carries just the db namespace selector used by most RPCs.
type DBRequest struct {
	DB string `json:"db"`
}

// LaunchTimeMessage is the request and response shape for
// Get/SetExperimentLaunchTime.
type LaunchTimeMessage struct {
	DB         string    `json:"db"`
	LaunchTime time.Time `json:"launch_time"`
}

// StartTimeMessage is the request and response shape for
// Get/SetExperimentStartTime.
type StartTimeMessage struct {
	DB        string  `json:"db"`
	StartTime float64 `json:"start_time"`
}

// VMMappingUUIDRequest selects one VM mapping by its server_uuid.
type VMMappingUUIDRequest struct {
	DB         string `json:"db"`
	ServerUUID string `json:"server_uuid"`
}

// CountVMMappingsNotReadyResponse answers CountVMMappingsNotReady.
type CountVMMappingsNotReadyResponse struct {
	DB    string `json:"db"`
	Count uint32 `json:"count"`
}

// ListVMMappingsRequest optionally filters by a JSON match dict
// (spec.md §6): a flat field=value map applied against each mapping.
type ListVMMappingsRequest struct {
	DB            string `json:"db"`
	JSONMatchDict string `json:"json_match_dict"`
}

// ListVMMappingsResponse batches the matching mappings. spec.md
// describes this RPC as returning "stream of VMMapping"; this
// implementation collapses the stream into one response message since
// a single experiment's VM count is bounded ("potentially hundreds per
// host", not unbounded) and the store itself is in-memory, so there is
// no backpressure reason to stream. See DESIGN.md.
type ListVMMappingsResponse struct {
	Mappings []VMMapping `json:"mappings"`
}

// SetVMTimeByUUIDRequest updates one VM's current_time.
type SetVMTimeByUUIDRequest struct {
	DB          string `json:"db"`
	ServerUUID  string `json:"server_uuid"`
	CurrentTime string `json:"current_time"`
}

// SetVMStateByUUIDRequest updates one VM's lifecycle state.
type SetVMStateByUUIDRequest struct {
	DB         string        `json:"db"`
	ServerUUID string        `json:"server_uuid"`
	State      vmstate.State `json:"state"`
}
