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

func call[Resp, Req any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start asks the daemon to resume claiming and executing work.
func (c *Client) Start() (*StartResponse, error) {
	return call[StartResponse](c, "Start", StartRequest{})
}

// Stop asks the daemon to stop claiming work and drain running handlers.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Enqueue stores a work item through the daemon.
func (c *Client) Enqueue(workType, payload string) (*EnqueueResponse, error) {
	return call[EnqueueResponse](c, "Enqueue", EnqueueRequest{WorkType: workType, Payload: payload})
}

// QueueList lists items in the given states, all states when none are given.
func (c *Client) QueueList(limit int, states ...string) (*QueueListResponse, error) {
	return call[QueueListResponse](c, "QueueList", QueueListRequest{States: states, Limit: limit})
}

// QueueDescribe fetches a single item by fingerprint.
func (c *Client) QueueDescribe(fingerprint int64) (*QueueDescribeResponse, error) {
	return call[QueueDescribeResponse](c, "QueueDescribe", QueueDescribeRequest{Fingerprint: fingerprint})
}

// QueueStats returns per-state totals.
func (c *Client) QueueStats() (*QueueStatsResponse, error) {
	return call[QueueStatsResponse](c, "QueueStats", QueueStatsRequest{})
}

// QueueClearItem deletes one item.
func (c *Client) QueueClearItem(fingerprint int64) (*QueueClearItemResponse, error) {
	return call[QueueClearItemResponse](c, "QueueClearItem", QueueClearItemRequest{Fingerprint: fingerprint})
}

// QueueClear removes every item.
func (c *Client) QueueClear() (*QueueClearResponse, error) {
	return call[QueueClearResponse](c, "QueueClear", QueueClearRequest{})
}
