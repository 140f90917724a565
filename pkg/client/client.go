// Package client wraps the scheduler's gRPC API for CLI usage: a thin
// wrapper over a *grpc.ClientConn plus the hand-written client stub, minus
// any mTLS bootstrap since authentication is out of scope here.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/qscheduler/pkg/api/rpc"
	"github.com/cuemby/qscheduler/pkg/config"
	"github.com/cuemby/qscheduler/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultCallTimeout = 30 * time.Second

// Client wraps the scheduler gRPC client for easy CLI usage.
type Client struct {
	conn   *grpc.ClientConn
	client rpc.SchedulerServiceClient
}

// NewClient dials addr and returns a Client ready for use.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials())) // #nosec G402
	if err != nil {
		return nil, fmt.Errorf("client: failed to dial %s: %w", addr, err)
	}
	return &Client{conn: conn, client: rpc.NewSchedulerServiceClient(conn)}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ExecuteQuery submits sql (or, if planJSON is non-empty, an
// already-serialized plan) with the given settings overrides and returns
// the assigned job id.
func (c *Client) ExecuteQuery(sql string, planJSON []byte, settings []config.KeyValue) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCallTimeout)
	defer cancel()

	resp, err := c.client.ExecuteQuery(ctx, &rpc.ExecuteQueryRequest{
		SQL:      sql,
		PlanJSON: planJSON,
		Settings: settings,
	})
	if err != nil {
		return "", err
	}
	return resp.JobID, nil
}

// GetJobStatus fetches the current status of jobID.
func (c *Client) GetJobStatus(jobID string) (types.JobStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCallTimeout)
	defer cancel()

	resp, err := c.client.GetJobStatus(ctx, &rpc.GetJobStatusRequest{JobID: jobID})
	if err != nil {
		return types.JobStatus{}, err
	}
	return resp.Status, nil
}

// GetFileMetadata probes path as fileType ("parquet" or "csv").
func (c *Client) GetFileMetadata(path, fileType string) (rpc.GetFileMetadataResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCallTimeout)
	defer cancel()

	resp, err := c.client.GetFileMetadata(ctx, &rpc.GetFileMetadataRequest{Path: path, FileType: fileType})
	if err != nil {
		return rpc.GetFileMetadataResponse{}, err
	}
	return *resp, nil
}

// PollWork exposes the raw poll call for executor implementations (see
// pkg/execsim); CLI commands never call this directly.
func (c *Client) PollWork(ctx context.Context, req *rpc.PollWorkRequest) (*rpc.PollWorkResponse, error) {
	return c.client.PollWork(ctx, req)
}
