package api

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/samcharles93/bandmask/internal/attention"
	"github.com/samcharles93/bandmask/internal/logger"
	"github.com/samcharles93/bandmask/internal/mask"
)

type providerKey struct {
	capacity, window int
}

// DefaultMaxInstances bounds the attention instances a Provider keeps when
// ProviderConfig.MaxInstances is unset.
const DefaultMaxInstances = 8

// Provider keeps one WindowedSelfAttention per capacity and effective window,
// up to a fixed number of instances. The least recently used instance is
// closed when a new one would exceed the limit. All instances draw their
// masks from one shared mask.Cache.
type Provider struct {
	masks       *mask.Cache
	maxCapacity int
	workers     int
	log         logger.Logger

	mu        sync.Mutex
	instances *lru.Cache[providerKey, *attention.WindowedSelfAttention]
}

// ProviderConfig configures a Provider.
type ProviderConfig struct {
	// Masks is shared with any other user of the same cache. Nil creates a
	// private cache of MaxInstances masks.
	Masks *mask.Cache
	// MaxCapacity bounds the capacities clients may request.
	MaxCapacity int
	// MaxInstances bounds the live attention instances. Zero or less means
	// DefaultMaxInstances.
	MaxInstances int
	Workers      int
	Logger       logger.Logger
}

// NewProvider returns an empty provider.
func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.MaxInstances < 1 {
		cfg.MaxInstances = DefaultMaxInstances
	}
	if cfg.Masks == nil {
		cfg.Masks = mask.NewCacheSize(cfg.MaxInstances)
	}
	p := &Provider{
		masks:       cfg.Masks,
		maxCapacity: cfg.MaxCapacity,
		workers:     cfg.Workers,
		log:         cfg.Logger,
	}
	// Evicted instances may still be serving a request; Forward keeps working
	// after Close, on the caller's goroutine.
	instances, err := lru.NewWithEvict(cfg.MaxInstances, func(key providerKey, a *attention.WindowedSelfAttention) {
		_ = a.Close()
		p.log.Debug("attention instance closed", "capacity", key.capacity, "window", key.window)
	})
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	p.instances = instances
	return p
}

// Mask returns the shared mask for capacity and window.
func (p *Provider) Mask(capacity, window int) (*mask.Mask, error) {
	if err := p.checkCapacity(capacity); err != nil {
		return nil, err
	}
	return p.masks.Get(capacity, window)
}

// Attention returns the cached instance, constructing it on first use.
func (p *Provider) Attention(capacity, window int) (*attention.WindowedSelfAttention, error) {
	if err := p.checkCapacity(capacity); err != nil {
		return nil, err
	}
	if window <= 0 || capacity < 1 {
		// Surface the builder's error without caching anything.
		_, err := mask.Build(capacity, window)
		return nil, err
	}
	key := providerKey{capacity: capacity, window: mask.EffectiveWindow(capacity, window)}

	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.instances.Get(key); ok {
		return a, nil
	}
	a, err := attention.New(attention.Config{
		SequenceCapacity: key.capacity,
		Window:           key.window,
		Workers:          p.workers,
	}, attention.WithCache(p.masks), attention.WithLogger(p.log))
	if err != nil {
		return nil, err
	}
	p.instances.Add(key, a)
	p.log.Debug("attention instance created", "capacity", key.capacity, "window", key.window)
	return a, nil
}

func (p *Provider) checkCapacity(capacity int) error {
	if p.maxCapacity > 0 && capacity > p.maxCapacity {
		return newInvalidRequest("capacity", fmt.Sprintf("capacity %d exceeds server limit %d", capacity, p.maxCapacity))
	}
	return nil
}

// Len returns the number of live attention instances.
func (p *Provider) Len() int {
	return p.instances.Len()
}

// Close stops every cached instance.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instances.Purge()
	return nil
}
