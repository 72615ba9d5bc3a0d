package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"go-storefront/models"
)

const (
	allProductsKey      = "products:all"
	featuredProductsKey = "products:featured"
	notFoundMarker      = "notfound"
	notFoundTTL         = time.Minute
)

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func categoryKey(category string) string {
	return fmt.Sprintf("products:category:%s", category)
}

// RedisOptions configures ConnectRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// ConnectRedis opens a client and pings it.
func ConnectRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// CachedStore caches catalog reads in Redis and passes everything else
// through to the wrapped Store. Redis failures are logged and the wrapped
// store is used instead.
type CachedStore struct {
	Store
	redis *redis.Client
	ttl   time.Duration
	log   logrus.FieldLogger
}

// NewCachedStore wraps store. A zero ttl defaults to five minutes.
func NewCachedStore(store Store, rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		Store: store,
		redis: rdb,
		ttl:   ttl,
		log:   log.WithField("component", "product_cache"),
	}
}

func (c *CachedStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	key := productKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, ErrNotFound
		}
		var product models.Product
		if err := json.Unmarshal(data, &product); err == nil {
			return &product, nil
		}
		c.log.WithError(err).WithField("key", key).Warn("failed to unmarshal cached product, continuing with store")
	case errors.Is(err, redis.Nil):
	default:
		c.log.WithError(err).Warn("redis error, continuing with store")
	}

	product, err := c.Store.GetProduct(ctx, id)
	if errors.Is(err, ErrNotFound) {
		if setErr := c.redis.Set(ctx, key, notFoundMarker, notFoundTTL).Err(); setErr != nil {
			c.log.WithError(setErr).Debug("failed to cache notfound")
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, product)
	return product, nil
}

func (c *CachedStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	return c.cachedList(ctx, allProductsKey, c.Store.GetProducts)
}

func (c *CachedStore) GetFeaturedProducts(ctx context.Context) ([]models.Product, error) {
	return c.cachedList(ctx, featuredProductsKey, c.Store.GetFeaturedProducts)
}

func (c *CachedStore) GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return c.cachedList(ctx, categoryKey(category), func(ctx context.Context) ([]models.Product, error) {
		return c.Store.GetProductsByCategory(ctx, category)
	})
}

func (c *CachedStore) cachedList(ctx context.Context, key string, load func(context.Context) ([]models.Product, error)) ([]models.Product, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var products []models.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
		c.log.WithError(err).WithField("key", key).Warn("failed to unmarshal cached products, continuing with store")
	} else if !errors.Is(err, redis.Nil) {
		c.log.WithError(err).Warn("redis error, continuing with store")
	}

	products, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, products)
	return products, nil
}

func (c *CachedStore) set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.WithError(err).Warn("failed to marshal cache entry")
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Debug("failed to cache entry")
	}
}

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.log.WithError(err).WithField("keys", keys).Warn("failed to invalidate cache")
	}
}

// invalidateAll drops every catalog entry. Used when a write touches
// products whose categories are not known up front.
func (c *CachedStore) invalidateAll(ctx context.Context) {
	iter := c.redis.Scan(ctx, 0, "product*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.WithError(err).Warn("failed to scan cache keys")
		return
	}
	if len(keys) > 0 {
		c.invalidate(ctx, keys...)
	}
}

func (c *CachedStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := c.Store.CreateProduct(ctx, product); err != nil {
		return err
	}
	c.invalidate(ctx, productKey(product.ID), allProductsKey, featuredProductsKey, categoryKey(product.Category))
	return nil
}

func (c *CachedStore) UpdateProduct(ctx context.Context, id int64, update models.ProductUpdate) (*models.Product, error) {
	old, err := c.Store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	product, err := c.Store.UpdateProduct(ctx, id, update)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, productKey(id), allProductsKey, featuredProductsKey,
		categoryKey(old.Category), categoryKey(product.Category))
	return product, nil
}

func (c *CachedStore) DeleteProduct(ctx context.Context, id int64) error {
	old, err := c.Store.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := c.Store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, productKey(id), allProductsKey, featuredProductsKey, categoryKey(old.Category))
	return nil
}

// PlaceOrder changes stock, which is part of every cached product view.
func (c *CachedStore) PlaceOrder(ctx context.Context, userID int64, shippingAddress string) (*models.Order, error) {
	order, err := c.Store.PlaceOrder(ctx, userID, shippingAddress)
	if err != nil {
		return nil, err
	}
	c.invalidateAll(ctx)
	return order, nil
}
