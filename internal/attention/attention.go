// Package attention applies a banded causal mask inside scaled dot-product
// attention.
//
// A WindowedSelfAttention builds its mask once, at construction, for the
// configured sequence capacity. Every forward call reuses the top-left corner
// of that mask, so calls never allocate or rebuild it.
package attention

import (
	"fmt"
	"math"
	"runtime"

	"github.com/samcharles93/bandmask/internal/logger"
	"github.com/samcharles93/bandmask/internal/mask"
	"github.com/samcharles93/bandmask/internal/tensor"
)

// Config sizes a WindowedSelfAttention.
type Config struct {
	// SequenceCapacity is the longest sequence a forward call may present.
	SequenceCapacity int
	// Window is the number of positions each query sees, itself included.
	Window int
	// NumHeads and HeadDim describe the tensors produced by the projection
	// layers. Zero disables the corresponding check.
	NumHeads int
	HeadDim  int
	// Workers bounds how many heads run in parallel. Zero or less uses
	// GOMAXPROCS.
	Workers int
}

// Option customises New.
type Option func(*options)

type options struct {
	log   logger.Logger
	cache *mask.Cache
}

// WithLogger sets the logger used for construction diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithCache takes the mask from c instead of building a private one, so
// instances with the same capacity and window share one read-only mask.
func WithCache(c *mask.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WindowedSelfAttention is safe for concurrent use.
type WindowedSelfAttention struct {
	cfg  Config
	mask *mask.Mask
	pool *pool
}

// New builds the mask for cfg and starts the head workers. It fails when the
// mask cannot be built; no partially built instance is returned.
func New(cfg Config, opts ...Option) (*WindowedSelfAttention, error) {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.NumHeads < 0 || cfg.HeadDim < 0 {
		return nil, fmt.Errorf("%w: negative head shape (heads=%d, head_dim=%d)", mask.ErrInvalidParameter, cfg.NumHeads, cfg.HeadDim)
	}

	var (
		m   *mask.Mask
		err error
	)
	if o.cache != nil {
		m, err = o.cache.Get(cfg.SequenceCapacity, cfg.Window)
	} else {
		m, err = mask.Build(cfg.SequenceCapacity, cfg.Window)
	}
	if err != nil {
		return nil, fmt.Errorf("build attention mask: %w", err)
	}
	if m.Window() != cfg.Window {
		o.log.Debug("window exceeds sequence capacity, using full causal attention",
			"window", cfg.Window, "capacity", cfg.SequenceCapacity)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	o.log.Debug("windowed attention ready",
		"capacity", m.Size(), "window", m.Window(), "workers", workers)

	return &WindowedSelfAttention{
		cfg:  cfg,
		mask: m,
		pool: newPool(workers, m.Size()),
	}, nil
}

// Mask returns the mask built at construction.
func (a *WindowedSelfAttention) Mask() *mask.Mask { return a.mask }

// Capacity returns the configured sequence capacity.
func (a *WindowedSelfAttention) Capacity() int { return a.mask.Size() }

// Window returns the effective window.
func (a *WindowedSelfAttention) Window() int { return a.mask.Window() }

// Close stops the worker goroutines. Forward keeps working afterwards, on
// the caller's goroutine.
func (a *WindowedSelfAttention) Close() error {
	a.pool.close()
	return nil
}

// Forward computes softmax(q·kᵀ/√d + mask)·v for every batch element and
// head. q and k are (batch, heads, seq, d); v is (batch, heads, seq, dv) and
// the result has v's shape.
func (a *WindowedSelfAttention) Forward(q, k, v *tensor.Tensor) (*tensor.Tensor, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: missing value tensor", ErrShapeMismatch)
	}
	j, err := a.newJob(q, k)
	if err != nil {
		return nil, err
	}
	if v.Batch != q.Batch || v.Heads != q.Heads || v.Seq != q.Seq {
		return nil, fmt.Errorf("%w: value shape %v does not match query shape %v", ErrShapeMismatch, v.Shape(), q.Shape())
	}
	j.v = v
	j.out = tensor.New(v.Batch, v.Heads, v.Seq, v.Dim)
	a.pool.run(j, q.Batch*q.Heads)
	return j.out, nil
}

// Probabilities returns the post-softmax attention weights, shaped
// (batch, heads, seq, seq). Masked entries are exactly zero.
func (a *WindowedSelfAttention) Probabilities(q, k *tensor.Tensor) (*tensor.Tensor, error) {
	j, err := a.newJob(q, k)
	if err != nil {
		return nil, err
	}
	j.probs = tensor.New(q.Batch, q.Heads, q.Seq, q.Seq)
	a.pool.run(j, q.Batch*q.Heads)
	return j.probs, nil
}

func (a *WindowedSelfAttention) newJob(q, k *tensor.Tensor) (*job, error) {
	if q == nil || k == nil {
		return nil, fmt.Errorf("%w: missing query or key tensor", ErrShapeMismatch)
	}
	if q.Shape() != k.Shape() {
		return nil, fmt.Errorf("%w: query shape %v, key shape %v", ErrShapeMismatch, q.Shape(), k.Shape())
	}
	if q.Dim == 0 {
		return nil, fmt.Errorf("%w: zero head dimension", ErrShapeMismatch)
	}
	if a.cfg.NumHeads > 0 && q.Heads != a.cfg.NumHeads {
		return nil, fmt.Errorf("%w: got %d heads, configured %d", ErrShapeMismatch, q.Heads, a.cfg.NumHeads)
	}
	if a.cfg.HeadDim > 0 && q.Dim != a.cfg.HeadDim {
		return nil, fmt.Errorf("%w: got head dimension %d, configured %d", ErrShapeMismatch, q.Dim, a.cfg.HeadDim)
	}
	if q.Seq > a.mask.Size() {
		return nil, &SequenceTooLongError{Length: q.Seq, Capacity: a.mask.Size()}
	}
	m, err := a.mask.Slice(q.Seq)
	if err != nil {
		return nil, err
	}
	return &job{
		q:     q,
		k:     k,
		mask:  m,
		scale: float32(1.0 / math.Sqrt(float64(q.Dim))),
	}, nil
}

// job is one forward or probabilities call. Heads are numbered
// b*Heads + h and each head writes only its own slice of out or probs.
type job struct {
	q, k, v *tensor.Tensor
	mask    *mask.Mask
	scale   float32

	out   *tensor.Tensor
	probs *tensor.Tensor
}

func (j *job) runHeads(scoresBuf []float32, lo, hi int) {
	n := j.mask.Size()
	if n == 0 {
		return
	}
	if n > len(scoresBuf) {
		panic("attention scores buffer too small")
	}
	negInf := float32(math.Inf(-1))
	scores := scoresBuf[:n]
	for head := lo; head < hi; head++ {
		b, h := head/j.q.Heads, head%j.q.Heads
		qh := j.q.Head(b, h)
		kh := j.k.Head(b, h)
		for i := range n {
			qi := qh.Row(i)
			for t := range n {
				if j.mask.At(i, t) {
					scores[t] = tensor.Dot(qi, kh.Row(t)) * j.scale
				} else {
					scores[t] = negInf
				}
			}
			tensor.Softmax(scores)

			if j.probs != nil {
				ph := j.probs.Head(b, h)
				copy(ph.Row(i), scores)
			}
			if j.out != nil {
				vh := j.v.Head(b, h)
				oh := j.out.Head(b, h)
				dst := oh.Row(i)
				start, end := j.mask.Span(i)
				for t := start; t < end; t++ {
					tensor.AddScaled(dst, vh.Row(t), scores[t])
				}
			}
		}
	}
}
