// Package sequencer probes each rollup's L2 endpoint for head-block
// progression: one periodic poller per configured rollup, publishing
// SequencerMetrics into the Hub.
package sequencer

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/time/rate"

	"github.com/chainbound-labs/rollupwatch/internal/metrics"
	"github.com/chainbound-labs/rollupwatch/internal/rollup"
)

const (
	// DefaultPollInterval applies when {ROLLUP}_L2_POLL_MS is unset.
	DefaultPollInterval = 10 * time.Second

	// minPollSpacing caps the effective poll rate regardless of a
	// misconfigured low {ROLLUP}_L2_POLL_MS, so a typo can't hammer an
	// L2 endpoint.
	minPollSpacing = time.Second

	// emaAlpha is the smoothing factor for the blocks-per-second
	// exponential moving average.
	emaAlpha = 0.2
)

// MetricsSink is the slice of the Hub a poller writes through, narrowed
// to ease faking in tests.
type MetricsSink interface {
	RecordSequencer(id rollup.ID, m rollup.SequencerMetrics)
}

// Poller probes one rollup's L2 endpoint for head-block progression.
// All of its state is private to its Run goroutine; only finished
// SequencerMetrics snapshots leave it, through the sink.
type Poller struct {
	rollup        rollup.ID
	src           HeadSource
	sink          MetricsSink
	interval      time.Duration
	downThreshold int64
	limiter       *rate.Limiter
	m             metrics.Metricer
	log           log.Logger

	// now is swappable so tests can drive wall clock.
	now func() time.Time

	latestBlock      uint64
	latestBlockTS    int64
	blocksPerSecond  float64
	haveEMA          bool
	lastAdvanceAt    time.Time
	haveSeenBlock    bool
	sinceLastAdvance int64
}

func NewPoller(id rollup.ID, src HeadSource, sink MetricsSink, interval time.Duration, downThreshold int64, m metrics.Metricer, l log.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if downThreshold <= 0 {
		downThreshold = rollup.DefaultSequencerDownThresholdSecs
	}
	if m == nil {
		m = metrics.NoopMetrics
	}
	return &Poller{
		rollup:        id,
		src:           src,
		sink:          sink,
		interval:      interval,
		downThreshold: downThreshold,
		limiter:       rate.NewLimiter(rate.Every(minPollSpacing), 1),
		m:             m,
		log:           l.New("component", "sequencer_poller", "rollup", id.String()),
		now:           time.Now,
	}
}

// Run polls until ctx is cancelled. Poll failures are never fatal: the
// block number is left as-is and the time-since-advance keeps growing,
// which is what eventually flips is_producing to false.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("sequencer poller started", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("sequencer poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}
	now := p.now()

	block, blockTS, err := p.src.GetHead(ctx)
	if err != nil {
		p.log.Warn("failed to fetch L2 head", "err", err)
		p.m.RecordSequencerPoll(p.rollup.String(), false)
		p.observeNoAdvance(now)
		p.publish(now)
		return
	}
	p.m.RecordSequencerPoll(p.rollup.String(), true)

	switch {
	case !p.haveSeenBlock:
		p.latestBlock = block
		p.latestBlockTS = blockTS
		p.haveSeenBlock = true
		p.lastAdvanceAt = now
		p.sinceLastAdvance = 0
	case block > p.latestBlock:
		elapsed := now.Sub(p.lastAdvanceAt).Seconds()
		if elapsed > 0 {
			sample := float64(block-p.latestBlock) / elapsed
			if p.haveEMA {
				p.blocksPerSecond = emaAlpha*sample + (1-emaAlpha)*p.blocksPerSecond
			} else {
				p.blocksPerSecond = sample
				p.haveEMA = true
			}
		}
		p.latestBlock = block
		p.latestBlockTS = blockTS
		p.lastAdvanceAt = now
		p.sinceLastAdvance = 0
	default:
		p.observeNoAdvance(now)
	}

	p.publish(now)
}

// observeNoAdvance recomputes the time since the head last moved. Before
// the first successful poll there is no advance to measure from, so the
// counter stays at zero.
func (p *Poller) observeNoAdvance(now time.Time) {
	if !p.haveSeenBlock {
		return
	}
	p.sinceLastAdvance = int64(now.Sub(p.lastAdvanceAt).Seconds())
}

func (p *Poller) publish(now time.Time) {
	m := rollup.SequencerMetrics{
		LatestBlock:                  p.latestBlock,
		LatestBlockTimestamp:         p.latestBlockTS,
		BlocksPerSecond:              p.blocksPerSecond,
		SecondsSinceLastBlockAdvance: p.sinceLastAdvance,
		LastPolled:                   now.Unix(),
	}
	producing := m.IsProducing(p.downThreshold)
	p.m.RecordSequencerProducing(p.rollup.String(), producing)
	p.sink.RecordSequencer(p.rollup, m)
	p.log.Debug("sequencer poll", "block", p.latestBlock, "bps", p.blocksPerSecond, "producing", producing)
}
