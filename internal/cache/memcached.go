package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/IliaW/catalog-crawler/config"
	"github.com/IliaW/catalog-crawler/internal"
	"github.com/bradfitz/gomemcache/memcache"
)

type VisitedClient interface {
	SeenRecently(url string) bool
	MarkVisited(url string)
	Close()
}

// MemcachedClient remembers which detail pages were enriched recently, so
// repeated runs don't burn rendered-browser visits on the same albums.
type MemcachedClient struct {
	client *memcache.Client
	cfg    *config.CacheConfig
}

func NewMemcachedClient(cacheConfig *config.CacheConfig) *MemcachedClient {
	slog.Info("connecting to memcached...")
	ss := new(memcache.ServerList)
	err := ss.SetServers(cacheConfig.Servers...)
	if err != nil {
		slog.Error("failed to set memcached servers.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	c := &MemcachedClient{
		client: memcache.NewFromSelector(ss),
		cfg:    cacheConfig,
	}
	slog.Info("pinging the memcached.")
	err = c.client.Ping()
	if err != nil {
		slog.Error("connection to the memcached is failed.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to memcached!")

	return c
}

func (mc *MemcachedClient) SeenRecently(url string) bool {
	_, err := mc.client.Get(visitKey(url))
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			slog.Warn("failed to read visit mark.", slog.String("url", url),
				slog.String("err", err.Error()))
		}
		return false
	}

	return true
}

func (mc *MemcachedClient) MarkVisited(url string) {
	item := &memcache.Item{
		Key:        visitKey(url),
		Value:      []byte("1"),
		Expiration: int32(mc.cfg.TtlForVisit.Seconds()),
	}
	if err := mc.client.Set(item); err != nil {
		slog.Error("failed to save visit mark.", slog.String("url", url),
			slog.String("err", err.Error()))
		return
	}
	slog.Debug("visit mark saved to cache.", slog.String("url", url))
}

func (mc *MemcachedClient) Close() {
	slog.Info("closing memcached connection.")
	err := mc.client.Close()
	if err != nil {
		slog.Error("failed to close memcached connection.", slog.String("err", err.Error()))
	}
}

func visitKey(url string) string {
	return fmt.Sprintf("%s-enriched", internal.HashURL(url))
}
