package db

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const policyCacheSize = 1024

// CachedClient is a read-through policy cache in front of a Client. Policies
// are read on every decision but change rarely, so hits avoid a round trip per
// message. Writes update storage first and then refresh the cache entry.
type CachedClient struct {
	Client
	policies *lru.Cache[int64, *ChatPolicy]
}

func NewCachedClient(client Client) (*CachedClient, error) {
	cache, err := lru.New[int64, *ChatPolicy](policyCacheSize)
	if err != nil {
		return nil, err
	}
	return &CachedClient{Client: client, policies: cache}, nil
}

func (c *CachedClient) GetPolicy(ctx context.Context, chatID int64) (*ChatPolicy, error) {
	if policy, ok := c.policies.Get(chatID); ok {
		return policy, nil
	}
	policy, err := c.Client.GetPolicy(ctx, chatID)
	if err != nil {
		return nil, err
	}
	c.policies.Add(chatID, policy)
	return policy, nil
}

func (c *CachedClient) SetPolicy(ctx context.Context, policy *ChatPolicy) error {
	if err := c.Client.SetPolicy(ctx, policy); err != nil {
		return err
	}
	c.policies.Add(policy.ChatID, policy)
	return nil
}
