package coordsvc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/sandialabs/firewheel-core/pkg/config"
	"github.com/sandialabs/firewheel-core/pkg/ferrors"
	"github.com/sandialabs/firewheel-core/pkg/retry"
	"github.com/sandialabs/firewheel-core/pkg/vmstate"
)

// Client is a thin RPC client bound to one db and, optionally, one VM
// (server_uuid) so it can satisfy pkg/executor.Coordinator directly.
// Every call goes through pkg/retry per spec.md §5's retry discipline.
type Client struct {
	conn       *grpc.ClientConn
	db         string
	serverUUID string
	retryCfg   config.Retry
}

// NewClient wraps an already-dialed *grpc.ClientConn (dialed with
// DialOption() so the JSON codec is negotiated).
func NewClient(conn *grpc.ClientConn, db, serverUUID string, retryCfg config.Retry) *Client {
	return &Client{conn: conn, db: db, serverUUID: serverUUID, retryCfg: retryCfg}
}

func invoke[Req any, Resp any](ctx context.Context, c *Client, cfg config.Retry, isRetriable retry.Retriable, method string, req *Req) (*Resp, error) {
	resp := new(Resp)
	err := retry.Do(ctx, cfg, isRetriable, func() error {
		return c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, resp)
	})
	if err != nil {
		return nil, fmt.Errorf("coordsvc client: %s: %w", method, err)
	}
	return resp, nil
}

func (c *Client) GetInfo(ctx context.Context) (*GetInfoResponse, error) {
	return invoke[GetInfoRequest, GetInfoResponse](ctx, c, c.retryCfg, nil, "GetInfo", &GetInfoRequest{})
}

func (c *Client) GetExperimentLaunchTime(ctx context.Context) (*LaunchTimeMessage, error) {
	return invoke[DBRequest, LaunchTimeMessage](ctx, c, c.retryCfg, nil, "GetExperimentLaunchTime", &DBRequest{DB: c.db})
}

func (c *Client) SetExperimentLaunchTime(ctx context.Context, msg LaunchTimeMessage) (*LaunchTimeMessage, error) {
	msg.DB = c.db
	return invoke[LaunchTimeMessage, LaunchTimeMessage](ctx, c, c.retryCfg, nil, "SetExperimentLaunchTime", &msg)
}

func (c *Client) GetExperimentStartTime(ctx context.Context) (*StartTimeMessage, error) {
	return invoke[DBRequest, StartTimeMessage](ctx, c, c.retryCfg, startTimeRetriable, "GetExperimentStartTime", &DBRequest{DB: c.db})
}

func (c *Client) SetExperimentStartTime(ctx context.Context, startTime float64) (*StartTimeMessage, error) {
	return invoke[StartTimeMessage, StartTimeMessage](ctx, c, c.retryCfg, nil, "SetExperimentStartTime", &StartTimeMessage{DB: c.db, StartTime: startTime})
}

func (c *Client) InitializeExperimentStartTime(ctx context.Context) (*StartTimeMessage, error) {
	return invoke[DBRequest, StartTimeMessage](ctx, c, c.retryCfg, nil, "InitializeExperimentStartTime", &DBRequest{DB: c.db})
}

func (c *Client) SetVMMapping(ctx context.Context, m VMMapping) (*VMMapping, error) {
	m.DB = c.db
	return invoke[VMMapping, VMMapping](ctx, c, c.retryCfg, nil, "SetVMMapping", &m)
}

func (c *Client) GetVMMappingByUUID(ctx context.Context, serverUUID string) (*VMMapping, error) {
	return invoke[VMMappingUUIDRequest, VMMapping](ctx, c, c.retryCfg, nil, "GetVMMappingByUUID", &VMMappingUUIDRequest{DB: c.db, ServerUUID: serverUUID})
}

func (c *Client) DestroyVMMappingByUUID(ctx context.Context, serverUUID string) error {
	_, err := invoke[VMMappingUUIDRequest, Empty](ctx, c, c.retryCfg, nil, "DestroyVMMappingByUUID", &VMMappingUUIDRequest{DB: c.db, ServerUUID: serverUUID})
	return err
}

func (c *Client) ListVMMappings(ctx context.Context, jsonMatchDict string) (*ListVMMappingsResponse, error) {
	return invoke[ListVMMappingsRequest, ListVMMappingsResponse](ctx, c, c.retryCfg, nil, "ListVMMappings", &ListVMMappingsRequest{DB: c.db, JSONMatchDict: jsonMatchDict})
}

func (c *Client) CountVMMappingsNotReady(ctx context.Context) (*CountVMMappingsNotReadyResponse, error) {
	return invoke[DBRequest, CountVMMappingsNotReadyResponse](ctx, c, c.retryCfg, nil, "CountVMMappingsNotReady", &DBRequest{DB: c.db})
}

func (c *Client) SetVMTimeByUUID(ctx context.Context, serverUUID, currentTime string) (*VMMapping, error) {
	return invoke[SetVMTimeByUUIDRequest, VMMapping](ctx, c, c.retryCfg, nil, "SetVMTimeByUUID", &SetVMTimeByUUIDRequest{DB: c.db, ServerUUID: serverUUID, CurrentTime: currentTime})
}

func (c *Client) SetVMStateByUUID(ctx context.Context, serverUUID string, state vmstate.State) (*VMMapping, error) {
	return invoke[SetVMStateByUUIDRequest, VMMapping](ctx, c, c.retryCfg, nil, "SetVMStateByUUID", &SetVMStateByUUIDRequest{DB: c.db, ServerUUID: serverUUID, State: state})
}

func (c *Client) DestroyAllVMMappings(ctx context.Context) error {
	_, err := invoke[DBRequest, Empty](ctx, c, c.retryCfg, nil, "DestroyAllVMMappings", &DBRequest{DB: c.db})
	return err
}

func (c *Client) ClearDb(ctx context.Context) error {
	_, err := invoke[DBRequest, Empty](ctx, c, c.retryCfg, nil, "ClearDb", &DBRequest{DB: c.db})
	return err
}

// ReportState and ReportTime, together with WaitForStartTime below,
// satisfy pkg/executor.Coordinator: a Client bound to one VM's
// server_uuid is a drop-in Coordinator for that VM's Executor.
func (c *Client) ReportState(ctx context.Context, vmName string, state vmstate.State) error {
	_, err := c.SetVMStateByUUID(ctx, c.serverUUID, state)
	return err
}

func (c *Client) ReportTime(ctx context.Context, vmName string, currentTime float64) error {
	_, err := c.SetVMTimeByUUID(ctx, c.serverUUID, fmt.Sprintf("%f", currentTime))
	return err
}

// WaitForStartTime polls GetExperimentStartTime until a start time has
// been published, blocking until then or until ctx is cancelled. This
// loops outside pkg/retry.Do's bounded-attempt model because "block
// until start_time is published" (spec.md §4.3) is an open-ended
// suspension point, not a single bounded-attempt RPC call.
func (c *Client) WaitForStartTime(ctx context.Context) (float64, error) {
	for {
		resp, err := c.GetExperimentStartTime(ctx)
		if err == nil {
			return resp.StartTime, nil
		}
		if !startTimeRetriable(err) {
			return 0, err
		}
		if sleepErr := retry.Sleep(ctx, c.retryCfg.Base); sleepErr != nil {
			return 0, sleepErr
		}
	}
}

func startTimeRetriable(err error) bool {
	if errors.Is(err, ferrors.ErrStartTimeNotSet) {
		return true
	}
	// Over gRPC the server's sentinel arrives as a status error that
	// carries only its message.
	var se interface{ GRPCStatus() *status.Status }
	return errors.As(err, &se) && se.GRPCStatus().Message() == ferrors.ErrStartTimeNotSet.Error()
}

// TimeToStart and TimeSinceStart are convenience helpers supplementing
// the bare RPC surface, grounded on
// original_source/src/firewheel/vm_resource_manager/experiment_start.py's
// ExperimentStart.get_time_to_start/get_time_since_start.
func (c *Client) TimeToStart(ctx context.Context, now float64) (float64, error) {
	resp, err := c.GetExperimentStartTime(ctx)
	if err != nil {
		return 0, err
	}
	return resp.StartTime - now, nil
}

func (c *Client) TimeSinceStart(ctx context.Context, now float64) (float64, error) {
	resp, err := c.GetExperimentStartTime(ctx)
	if err != nil {
		return 0, err
	}
	return now - resp.StartTime, nil
}
