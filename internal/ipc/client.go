package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Drives lists attached optical drives.
func (c *Client) Drives() (*DrivesResponse, error) {
	var resp DrivesResponse
	if err := c.client.Call("Ripcord.Drives", DrivesRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Titles inspects the disc in a drive and returns its title inventory.
func (c *Client) Titles(driveID int) (*TitlesResponse, error) {
	var resp TitlesResponse
	if err := c.client.Call("Ripcord.Titles", TitlesRequest{DriveID: driveID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Rip enqueues a rip job for the given titles. A non-empty outputDir
// overrides the daemon's configured output directory.
func (c *Client) Rip(driveID int, titleIndexes []int, outputDir string) (*RipResponse, error) {
	var resp RipResponse
	req := RipRequest{DriveID: driveID, TitleIndexes: titleIndexes, OutputDir: outputDir}
	if err := c.client.Call("Ripcord.Rip", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobStatus fetches one job.
func (c *Client) JobStatus(id int64) (*JobStatusResponse, error) {
	var resp JobStatusResponse
	if err := c.client.Call("Ripcord.JobStatus", JobStatusRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Jobs lists jobs optionally filtered by statuses.
func (c *Client) Jobs(statuses []string) (*JobsListResponse, error) {
	var resp JobsListResponse
	if err := c.client.Call("Ripcord.Jobs", JobsListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel stops a job.
func (c *Client) Cancel(id int64) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.client.Call("Ripcord.Cancel", CancelRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Retry puts a failed job back in the queue.
func (c *Client) Retry(id int64) (*RetryResponse, error) {
	var resp RetryResponse
	if err := c.client.Call("Ripcord.Retry", RetryRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobsClear removes finished jobs.
func (c *Client) JobsClear(statuses []string) (*JobsClearResponse, error) {
	var resp JobsClearResponse
	if err := c.client.Call("Ripcord.JobsClear", JobsClearRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Ripcord.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Ripcord.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Ripcord.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Ripcord.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
