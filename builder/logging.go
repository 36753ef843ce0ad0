package builder

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/Aussie-Nomad/MacForge-sub002/jamf"
	"github.com/Aussie-Nomad/MacForge-sub002/profile"
	"github.com/Aussie-Nomad/MacForge-sub002/validate"
)

// Middleware decorates a Service.
type Middleware func(Service) Service

// LoggingMiddleware logs every service call with its profile, error and
// duration.
func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger: logger, Service: next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	Service
}

func (mw loggingMiddleware) SaveProfile(p *profile.Profile) (saved *profile.Profile, err error) {
	defer func(begin time.Time) {
		_ = mw.logger.Log(
			"method", "SaveProfile",
			"profile", p.Identifier,
			"err", err,
			"took", time.Since(begin),
		)
	}(time.Now())
	saved, err = mw.Service.SaveProfile(p)
	return
}

func (mw loggingMiddleware) DeleteProfile(identifier string) (err error) {
	defer func(begin time.Time) {
		_ = mw.logger.Log(
			"method", "DeleteProfile",
			"profile", identifier,
			"err", err,
			"took", time.Since(begin),
		)
	}(time.Now())
	err = mw.Service.DeleteProfile(identifier)
	return
}

func (mw loggingMiddleware) ValidateProfile(identifier string) (issues []validate.Issue, err error) {
	defer func(begin time.Time) {
		_ = mw.logger.Log(
			"method", "ValidateProfile",
			"profile", identifier,
			"issues", len(issues),
			"err", err,
			"took", time.Since(begin),
		)
	}(time.Now())
	issues, err = mw.Service.ValidateProfile(identifier)
	return
}

func (mw loggingMiddleware) CheckCompliance(identifier string) (issues []validate.Issue, err error) {
	defer func(begin time.Time) {
		_ = mw.logger.Log(
			"method", "CheckCompliance",
			"profile", identifier,
			"issues", len(issues),
			"err", err,
			"took", time.Since(begin),
		)
	}(time.Now())
	issues, err = mw.Service.CheckCompliance(identifier)
	return
}

func (mw loggingMiddleware) ExportProfile(identifier string) (filename string, err error) {
	defer func(begin time.Time) {
		_ = mw.logger.Log(
			"method", "ExportProfile",
			"profile", identifier,
			"filename", filename,
			"err", err,
			"took", time.Since(begin),
		)
	}(time.Now())
	filename, err = mw.Service.ExportProfile(identifier)
	return
}

func (mw loggingMiddleware) PublishProfile(ctx context.Context, identifier string) (receipt *jamf.Receipt, err error) {
	defer func(begin time.Time) {
		updated := false
		if receipt != nil {
			updated = receipt.Updated
		}
		_ = mw.logger.Log(
			"method", "PublishProfile",
			"profile", identifier,
			"updated", updated,
			"err", err,
			"took", time.Since(begin),
		)
	}(time.Now())
	receipt, err = mw.Service.PublishProfile(ctx, identifier)
	return
}

func (mw loggingMiddleware) PublishAll(ctx context.Context, identifiers []string) (results []PublishResult, err error) {
	defer func(begin time.Time) {
		_ = mw.logger.Log(
			"method", "PublishAll",
			"profiles", len(identifiers),
			"err", err,
			"took", time.Since(begin),
		)
	}(time.Now())
	results, err = mw.Service.PublishAll(ctx, identifiers)
	return
}

func (mw loggingMiddleware) QueuePublish(identifier string) (jobID string, err error) {
	defer func(begin time.Time) {
		_ = mw.logger.Log(
			"method", "QueuePublish",
			"profile", identifier,
			"job", jobID,
			"err", err,
			"took", time.Since(begin),
		)
	}(time.Now())
	jobID, err = mw.Service.QueuePublish(identifier)
	return
}
