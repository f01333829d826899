package redisrepo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-tokenator/clients"
	errs "github.com/jrsteele09/go-tokenator/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ clients.Repo = (*RedisClientRepo)(nil)

// Hash fields of a client registration.
const (
	fieldDescription = "description"
	fieldSecret      = "client_secret"
	fieldScope       = "scope"
	fieldGrantTypes  = "grant_types"
	fieldCertBound   = "tls_client_certificate_bound_access_tokens"
)

// RedisClientRepo reads client registrations from hashes at "{prefix}clients/{clientId}",
// the layout shared with the provisioning tooling.
type RedisClientRepo struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisClientRepo(client redis.UniversalClient, keyPrefix string) *RedisClientRepo {
	return &RedisClientRepo{client: client, keyPrefix: keyPrefix}
}

func (r *RedisClientRepo) key(clientID string) string {
	return r.keyPrefix + "clients/" + clientID
}

func (r *RedisClientRepo) Get(ctx context.Context, clientID string) (*clients.Client, error) {
	fields, err := r.client.HGetAll(ctx, r.key(clientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("[RedisClientRepo.Get] %w: %w", errs.ErrStorageUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("client %s: %w", clientID, errs.ErrNotFound)
	}
	certBound, _ := strconv.ParseBool(fields[fieldCertBound])
	return &clients.Client{
		ID:                                    clientID,
		Description:                           fields[fieldDescription],
		Secret:                                fields[fieldSecret],
		Scope:                                 fields[fieldScope],
		GrantTypes:                            strings.Fields(fields[fieldGrantTypes]),
		TLSClientCertificateBoundAccessTokens: certBound,
	}, nil
}

func (r *RedisClientRepo) Upsert(ctx context.Context, client *clients.Client) error {
	if client.ID == "" {
		return fmt.Errorf("client id is required")
	}
	err := r.client.HSet(ctx, r.key(client.ID),
		fieldDescription, client.Description,
		fieldSecret, client.Secret,
		fieldScope, client.Scope,
		fieldGrantTypes, strings.Join(client.GrantTypes, " "),
		fieldCertBound, strconv.FormatBool(client.TLSClientCertificateBoundAccessTokens),
	).Err()
	if err != nil {
		return fmt.Errorf("[RedisClientRepo.Upsert] %w: %w", errs.ErrStorageUnavailable, err)
	}
	return nil
}
