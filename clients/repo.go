package clients

import "context"

// Repo looks up registered clients. Get returns an error wrapping errors.ErrNotFound for
// unknown client ids.
type Repo interface {
	Upsert(ctx context.Context, client *Client) error
	Get(ctx context.Context, clientID string) (*Client, error)
}
