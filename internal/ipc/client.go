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

func (c *Client) call(method string, req, resp any) error {
	return DecodeError(c.client.Call("Ratchet."+method, req, resp))
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sweep triggers an immediate sweep pass.
func (c *Client) Sweep() (*SweepResponse, error) {
	var resp SweepResponse
	if err := c.call("Sweep", SweepRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ItemCreate registers a new work item.
func (c *Client) ItemCreate(req ItemCreateRequest) (*ItemCreateResponse, error) {
	var resp ItemCreateResponse
	if err := c.call("ItemCreate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ItemList returns items optionally filtered by statuses.
func (c *Client) ItemList(statuses []string) (*ItemListResponse, error) {
	var resp ItemListResponse
	if err := c.call("ItemList", ItemListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ItemDescribe returns details for a single item.
func (c *Client) ItemDescribe(id string) (*ItemDescribeResponse, error) {
	var resp ItemDescribeResponse
	if err := c.call("ItemDescribe", ItemDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns the ledger for one item.
func (c *Client) History(id string) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.call("History", HistoryRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ledger returns ledger entries in a time window.
func (c *Client) Ledger(since, until string) (*LedgerResponse, error) {
	var resp LedgerResponse
	if err := c.call("Ledger", LedgerRequest{Since: since, Until: until}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ApprovalList returns items awaiting a decision.
func (c *Client) ApprovalList() (*ApprovalListResponse, error) {
	var resp ApprovalListResponse
	if err := c.call("ApprovalList", ApprovalListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Decide records an approval decision.
func (c *Client) Decide(id string, approved bool, reason string) (*DecideResponse, error) {
	var resp DecideResponse
	if err := c.call("Decide", DecideRequest{ID: id, Approved: approved, Reason: reason}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
