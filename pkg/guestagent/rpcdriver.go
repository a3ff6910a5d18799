package guestagent

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	rpcCodecName   = "json"
	rpcServiceName = "firewheel.guestagent.GuestAgent"
)

// rpcJSONCodec mirrors pkg/coordsvc's own JSON codec (see
// pkg/coordsvc/codec.go) for the same reason: no generated guest-agent
// protobuf client survived the retrieval pack, so RPCDriver talks plain
// JSON-over-gRPC instead. Registering the same codec name from two
// packages is harmless — both register functionally identical codecs,
// so in a program that imports both (such as firewheel-agentd) the
// later registration replacing the earlier one changes nothing.
type rpcJSONCodec struct{}

func (rpcJSONCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (rpcJSONCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (rpcJSONCodec) Name() string                               { return rpcCodecName }

func init() {
	encoding.RegisterCodec(rpcJSONCodec{})
}

// RPCDialOption negotiates the JSON codec for a guest-agent connection.
func RPCDialOption() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpcCodecName))
}

// RPCDriver is the production Driver: a thin client over a gRPC
// connection to the in-VM guest agent. The guest agent's own server
// side runs inside the VM image and is out of scope for this repo
// (spec.md's Non-goals exclude the hypervisor/VM control plane itself,
// and the guest-agent binary is the same kind of out-of-repo surface as
// the VM image contents) — RPCDriver only implements the client
// contract the Executor depends on.
type RPCDriver struct {
	conn *grpc.ClientConn
}

// NewRPCDriver wraps an already-dialed connection (dialed with
// RPCDialOption so the JSON codec is negotiated).
func NewRPCDriver(conn *grpc.ClientConn) *RPCDriver {
	return &RPCDriver{conn: conn}
}

type pingRequest struct{}
type pingResponse struct{}

func (d *RPCDriver) Ping(ctx context.Context) error {
	return d.conn.Invoke(ctx, rpcMethod("Ping"), &pingRequest{}, &pingResponse{})
}

type writeFileRequest struct {
	Path string `json:"path"`
	Data []byte `json:"data"`
	Mode uint32 `json:"mode"`
}
type writeFileResponse struct{}

func (d *RPCDriver) WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) error {
	req := &writeFileRequest{Path: path, Data: data, Mode: uint32(mode)}
	return d.conn.Invoke(ctx, rpcMethod("WriteFile"), req, &writeFileResponse{})
}

type readFileRequest struct {
	Path string `json:"path"`
}
type readFileResponse struct {
	Data []byte `json:"data"`
}

func (d *RPCDriver) ReadFile(ctx context.Context, path string) ([]byte, error) {
	resp := new(readFileResponse)
	if err := d.conn.Invoke(ctx, rpcMethod("ReadFile"), &readFileRequest{Path: path}, resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type statRequest struct {
	Path string `json:"path"`
}
type statResponse struct {
	MTime  time.Time `json:"mtime"`
	Size   int64     `json:"size"`
	Exists bool      `json:"exists"`
}

func (d *RPCDriver) Stat(ctx context.Context, path string) (FileStat, error) {
	resp := new(statResponse)
	if err := d.conn.Invoke(ctx, rpcMethod("Stat"), &statRequest{Path: path}, resp); err != nil {
		return FileStat{}, err
	}
	return FileStat{MTime: resp.MTime, Size: resp.Size, Exists: resp.Exists}, nil
}

type execRequest struct {
	Path string   `json:"path"`
	Args []string `json:"args"`
}
type execResponse struct {
	Handle string `json:"handle"`
}

func (d *RPCDriver) Exec(ctx context.Context, path string, args []string) (ExecHandle, error) {
	resp := new(execResponse)
	req := &execRequest{Path: path, Args: args}
	if err := d.conn.Invoke(ctx, rpcMethod("Exec"), req, resp); err != nil {
		return "", err
	}
	return ExecHandle(resp.Handle), nil
}

type execStatusRequest struct {
	Handle string `json:"handle"`
}
type execStatusResponse struct {
	Running  bool   `json:"running"`
	ExitCode int    `json:"exit_code"`
	Stdout   []byte `json:"stdout"`
	Stderr   []byte `json:"stderr"`
}

func (d *RPCDriver) ExecStatus(ctx context.Context, handle ExecHandle) (ExecStatus, error) {
	resp := new(execStatusResponse)
	req := &execStatusRequest{Handle: string(handle)}
	if err := d.conn.Invoke(ctx, rpcMethod("ExecStatus"), req, resp); err != nil {
		return ExecStatus{}, err
	}
	return ExecStatus{Running: resp.Running, ExitCode: resp.ExitCode, Stdout: resp.Stdout, Stderr: resp.Stderr}, nil
}

type rebootRequest struct{}
type rebootResponse struct{}

func (d *RPCDriver) Reboot(ctx context.Context) error {
	return d.conn.Invoke(ctx, rpcMethod("Reboot"), &rebootRequest{}, &rebootResponse{})
}

func rpcMethod(name string) string {
	return "/" + rpcServiceName + "/" + name
}

var _ Driver = (*RPCDriver)(nil)
