package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/Aussie-Nomad/MacForge-sub002/jamf"
	"github.com/Aussie-Nomad/MacForge-sub002/profile"
)

// InstrumentingMiddleware counts and times service calls.
func InstrumentingMiddleware(requestCount metrics.Counter, requestLatency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{
			requestCount:   requestCount,
			requestLatency: requestLatency,
			Service:        next,
		}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	Service
}

func (mw instrumentingMiddleware) instrument(begin time.Time, method string, err error) {
	lvs := []string{"method", method, "error", fmt.Sprintf("%t", err != nil)}
	mw.requestCount.With(lvs...).Add(1)
	mw.requestLatency.With(lvs...).Observe(time.Since(begin).Seconds())
}

func (mw instrumentingMiddleware) SaveProfile(p *profile.Profile) (saved *profile.Profile, err error) {
	defer func(begin time.Time) {
		mw.instrument(begin, "SaveProfile", err)
	}(time.Now())
	saved, err = mw.Service.SaveProfile(p)
	return
}

func (mw instrumentingMiddleware) DeleteProfile(identifier string) (err error) {
	defer func(begin time.Time) {
		mw.instrument(begin, "DeleteProfile", err)
	}(time.Now())
	err = mw.Service.DeleteProfile(identifier)
	return
}

func (mw instrumentingMiddleware) ExportProfile(identifier string) (filename string, err error) {
	defer func(begin time.Time) {
		mw.instrument(begin, "ExportProfile", err)
	}(time.Now())
	filename, err = mw.Service.ExportProfile(identifier)
	return
}

func (mw instrumentingMiddleware) PublishProfile(ctx context.Context, identifier string) (receipt *jamf.Receipt, err error) {
	defer func(begin time.Time) {
		mw.instrument(begin, "PublishProfile", err)
	}(time.Now())
	receipt, err = mw.Service.PublishProfile(ctx, identifier)
	return
}

func (mw instrumentingMiddleware) PublishAll(ctx context.Context, identifiers []string) (results []PublishResult, err error) {
	defer func(begin time.Time) {
		mw.instrument(begin, "PublishAll", err)
	}(time.Now())
	results, err = mw.Service.PublishAll(ctx, identifiers)
	return
}

func (mw instrumentingMiddleware) QueuePublish(identifier string) (jobID string, err error) {
	defer func(begin time.Time) {
		mw.instrument(begin, "QueuePublish", err)
	}(time.Now())
	jobID, err = mw.Service.QueuePublish(identifier)
	return
}
