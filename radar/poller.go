package radar

import (
	"context"
	"log/slog"
	"time"

	"github.com/hausctl/homecontroller/schedule"
)

// relevanceLookahead is how far ahead of the current slot the poller looks
// when deciding whether the rain flag is about to matter.
const relevanceLookahead = 10 * time.Minute

// Poller feeds radar frames into a Detector, but only while the schedule is
// in or about to enter the cover's closing classification: otherwise the
// flag is irrelevant and the query is skipped to save bandwidth, with the
// detector reset so no stale flag survives the gap.
type Poller struct {
	sampler  Sampler
	detector *Detector
	schedule *schedule.Holder
	closeOn  schedule.Classification
	logger   *slog.Logger
}

func NewPoller(sampler Sampler, detector *Detector, holder *schedule.Holder, closeOn schedule.Classification) *Poller {
	return &Poller{
		sampler:  sampler,
		detector: detector,
		schedule: holder,
		closeOn:  closeOn,
		logger:   slog.Default().With("task", "radar"),
	}
}

// Poll evaluates one cycle at the given instant.
func (p *Poller) Poll(t time.Time) {
	entries := p.schedule.Snapshot()
	current, _, okNow := schedule.At(entries, t)
	soon, _, okSoon := schedule.At(entries, t.Add(relevanceLookahead))

	relevant := (okNow && current.Classification == p.closeOn) || (okSoon && soon.Classification == p.closeOn)
	if !relevant {
		p.detector.Reset()
		return
	}

	frame, err := p.sampler.Latest()
	if err != nil {
		// a failed radar query counts as "no rain"
		p.logger.Error("failed to fetch radar frame", "error", err)
		p.detector.Reset()
		return
	}
	p.detector.Evaluate(frame)
}

// Run polls on the given interval until the context is cancelled.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			p.Poll(t)
		}
	}
}
