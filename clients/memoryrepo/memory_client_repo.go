package memoryrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jrsteele09/go-tokenator/clients"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
)

var _ clients.Repo = (*MemoryClientRepo)(nil)

// MemoryClientRepo keeps client registrations in process memory, typically loaded from a file.
type MemoryClientRepo struct {
	clients map[string]*clients.Client
	lock    sync.RWMutex
}

func NewMemoryClientRepo(registered ...*clients.Client) *MemoryClientRepo {
	r := &MemoryClientRepo{
		clients: make(map[string]*clients.Client, len(registered)),
	}
	for _, c := range registered {
		r.clients[c.ID] = c
	}
	return r
}

func (r *MemoryClientRepo) Upsert(_ context.Context, client *clients.Client) error {
	if client.ID == "" {
		return fmt.Errorf("client id is required")
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.clients[client.ID] = client
	return nil
}

func (r *MemoryClientRepo) Get(_ context.Context, clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %s: %w", clientID, errs.ErrNotFound)
	}
	return client, nil
}

// List returns the registered clients ordered by id.
func (r *MemoryClientRepo) List() []*clients.Client {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]*clients.Client, 0, len(r.clients))
	for _, v := range r.clients {
		list = append(list, v)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}
