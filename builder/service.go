// Package builder is the profile engine service: it stores drafts,
// validates them, serializes them to mobileconfig bytes and publishes
// them to the management server, directly or through the deferred
// publish queue.
package builder

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Aussie-Nomad/MacForge-sub002/archive"
	"github.com/Aussie-Nomad/MacForge-sub002/jamf"
	"github.com/Aussie-Nomad/MacForge-sub002/mobileconfig"
	"github.com/Aussie-Nomad/MacForge-sub002/profile"
	"github.com/Aussie-Nomad/MacForge-sub002/queue"
	"github.com/Aussie-Nomad/MacForge-sub002/validate"
)

var (
	// ErrNoPublisher is returned by publish operations when no
	// management server is configured.
	ErrNoPublisher = errors.New("no management server configured")
	// ErrNoQueue is returned by QueuePublish when no queue is configured.
	ErrNoQueue = errors.New("no publish queue configured")
)

// concurrent publishes in PublishAll. Different names are independent,
// so a small bound just protects the server.
const publishAllLimit = 4

// FileSink accepts exported profile files. The sink owns the directory
// choice; the service only produces the filename and bytes.
type FileSink interface {
	Write(filename string, data []byte) error
}

// DirSink writes exported profiles into a fixed directory.
type DirSink string

func (d DirSink) Write(filename string, data []byte) error {
	return os.WriteFile(filepath.Join(string(d), filename), data, 0644)
}

// PublishResult is one profile's outcome in a PublishAll batch.
type PublishResult struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Updated    bool   `json:"updated"`
	Err        string `json:"error,omitempty"`
}

// Service defines the profile engine operations.
type Service interface {
	// draft store CRUD. Drafts may be invalid; validation is on demand.
	SaveProfile(p *profile.Profile) (*profile.Profile, error)
	Profiles() ([]profile.Profile, error)
	ProfileByIdentifier(identifier string) (*profile.Profile, error)
	DeleteProfile(identifier string) error

	// ValidateProfile runs the strict per-payload pass, CheckCompliance
	// the advisory cross-payload pass. They are exposed separately so a
	// caller chooses strict or advisory validation.
	ValidateProfile(identifier string) ([]validate.Issue, error)
	CheckCompliance(identifier string) ([]validate.Issue, error)

	// PreviewProfile serializes without persisting or uploading.
	PreviewProfile(identifier string) ([]byte, error)
	// ExportProfile writes the serialized (and, when an identity is
	// configured, signed) profile through the file sink and returns the
	// sanitized filename.
	ExportProfile(identifier string) (string, error)

	PublishProfile(ctx context.Context, identifier string) (*jamf.Receipt, error)
	PublishAll(ctx context.Context, identifiers []string) ([]PublishResult, error)
	QueuePublish(identifier string) (string, error)
}

// Option configures the service.
type Option func(*service)

// Publisher sets the management server client used by publish operations.
func Publisher(p queue.Publisher) Option {
	return func(s *service) { s.publisher = p }
}

// Queue sets the deferred publish queue.
func Queue(q queue.Datastore) Option {
	return func(s *service) { s.queue = q }
}

// Recorder sets the publish archive.
func Recorder(r queue.Recorder) Option {
	return func(s *service) { s.recorder = r }
}

// Sink sets the export file sink.
func Sink(sink FileSink) Option {
	return func(s *service) { s.sink = sink }
}

// Policy sets the compliance tables. Defaults apply when unset.
func Policy(p *validate.Policy) Option {
	return func(s *service) { s.policy = p }
}

// SigningIdentity enables signing of exported profiles. Uploads always
// send the unsigned plist; the management server re-signs.
func SigningIdentity(id *mobileconfig.Identity) Option {
	return func(s *service) { s.identity = id }
}

// NewService creates the profile engine service on a draft store.
func NewService(store profile.Datastore, opts ...Option) Service {
	s := &service{
		store:  store,
		policy: validate.DefaultPolicy(),
		sink:   DirSink("."),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type service struct {
	store     profile.Datastore
	publisher queue.Publisher
	queue     queue.Datastore
	recorder  queue.Recorder
	sink      FileSink
	policy    *validate.Policy
	identity  *mobileconfig.Identity
}

func (svc *service) SaveProfile(p *profile.Profile) (*profile.Profile, error) {
	if p.Identifier == "" {
		return nil, errors.New("profile identifier required")
	}
	return svc.store.SaveProfile(p)
}

func (svc *service) Profiles() ([]profile.Profile, error) {
	return svc.store.Profiles()
}

func (svc *service) ProfileByIdentifier(identifier string) (*profile.Profile, error) {
	return svc.store.ProfileByIdentifier(identifier)
}

func (svc *service) DeleteProfile(identifier string) error {
	return svc.store.DeleteProfile(identifier)
}

func (svc *service) ValidateProfile(identifier string) ([]validate.Issue, error) {
	p, err := svc.store.ProfileByIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	return validate.Profile(p), nil
}

func (svc *service) CheckCompliance(identifier string) ([]validate.Issue, error) {
	p, err := svc.store.ProfileByIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	return svc.policy.Check(p), nil
}

func (svc *service) PreviewProfile(identifier string) ([]byte, error) {
	p, err := svc.store.ProfileByIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	return mobileconfig.Serialize(p)
}

func (svc *service) ExportProfile(identifier string) (string, error) {
	p, err := svc.store.ProfileByIdentifier(identifier)
	if err != nil {
		return "", err
	}
	data, err := mobileconfig.Serialize(p)
	if err != nil {
		return "", err
	}
	if svc.identity != nil {
		if data, err = mobileconfig.Sign(data, svc.identity); err != nil {
			return "", err
		}
	}
	filename := mobileconfig.Filename(p.Name)
	if err := svc.sink.Write(filename, data); err != nil {
		return "", errors.Wrap(err, "write exported profile")
	}
	return filename, nil
}

func (svc *service) PublishProfile(ctx context.Context, identifier string) (*jamf.Receipt, error) {
	if svc.publisher == nil {
		return nil, ErrNoPublisher
	}
	p, err := svc.store.ProfileByIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	data, err := mobileconfig.Serialize(p)
	if err != nil {
		return nil, err
	}
	receipt, err := svc.publisher.Publish(ctx, p.Name, data)
	if err != nil {
		svc.record(archive.NewEvent(p.Name, p.Identifier, archive.OutcomeFailed, err.Error(), false))
		return nil, err
	}
	svc.record(archive.NewEvent(p.Name, p.Identifier, archive.OutcomePublished, "", receipt.Updated))
	return receipt, nil
}

// PublishAll publishes several stored profiles concurrently. Publishes
// of different names are independent, so one failure does not stop the
// batch; each result carries its own error.
func (svc *service) PublishAll(ctx context.Context, identifiers []string) ([]PublishResult, error) {
	if svc.publisher == nil {
		return nil, ErrNoPublisher
	}
	results := make([]PublishResult, len(identifiers))
	var g errgroup.Group
	g.SetLimit(publishAllLimit)
	for i, identifier := range identifiers {
		i, identifier := i, identifier
		g.Go(func() error {
			results[i].Identifier = identifier
			if p, err := svc.store.ProfileByIdentifier(identifier); err == nil {
				results[i].Name = p.Name
			}
			receipt, err := svc.PublishProfile(ctx, identifier)
			if err != nil {
				results[i].Err = err.Error()
				return nil
			}
			results[i].Updated = receipt.Updated
			return nil
		})
	}
	g.Wait()
	return results, nil
}

func (svc *service) QueuePublish(identifier string) (string, error) {
	if svc.queue == nil {
		return "", ErrNoQueue
	}
	p, err := svc.store.ProfileByIdentifier(identifier)
	if err != nil {
		return "", err
	}
	// serialize now so the worker uploads exactly what was approved
	data, err := mobileconfig.Serialize(p)
	if err != nil {
		return "", err
	}
	job := queue.NewJob(p.Name, p.Identifier, data)
	if err := svc.queue.Enqueue(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (svc *service) record(ev archive.Event) {
	if svc.recorder == nil {
		return
	}
	// archiving is best effort; a failed write must not fail a publish
	_ = svc.recorder.SaveEvent(ev)
}
