package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/LuxRender/LuxFire/internal/jsonrpc"
)

// ErrUnavailable reports that the directory service itself could not be
// reached. Callers distinguish this from an empty group, which is a valid
// steady state (no workers online) rather than an error.
var ErrUnavailable = errors.New("directory service unavailable")

// Client resolves names against a remote directory service.
type Client struct {
	rpc *jsonrpc.Client
}

func NewClient(url string) *Client {
	return &Client{rpc: jsonrpc.NewClient(url)}
}

// Register announces a name/endpoint binding.
func (c *Client) Register(ctx context.Context, name, endpoint string) error {
	var ok bool
	if err := c.rpc.Call(ctx, "directory.register", []any{name, endpoint}, &ok); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}

// Deregister removes a name binding. Best effort on shutdown.
func (c *Client) Deregister(ctx context.Context, name string) error {
	return c.rpc.Call(ctx, "directory.deregister", []any{name}, nil)
}

// ResolveGroup lists the registered member names of a group. A transport
// failure maps to ErrUnavailable; an unknown or empty group is ([], nil).
func (c *Client) ResolveGroup(ctx context.Context, group string) ([]string, error) {
	var names []string
	if err := c.rpc.Call(ctx, "directory.resolveGroup", []any{group}, &names); err != nil {
		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) {
			// The service answered; treat any refusal as an empty group.
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return names, nil
}

// Lookup resolves a single name to its endpoint.
func (c *Client) Lookup(ctx context.Context, name string) (string, error) {
	var endpoint string
	if err := c.rpc.Call(ctx, "directory.lookup", []any{name}, &endpoint); err != nil {
		return "", fmt.Errorf("lookup %s: %w", name, err)
	}
	return endpoint, nil
}
