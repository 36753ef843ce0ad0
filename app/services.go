package app

import (
	"context"
	"crypto/x509"
	"errors"
	"os"

	"github.com/boltdb/bolt"
	"github.com/go-kit/kit/log"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/gomodule/redigo/redis"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/pkcs12"

	"github.com/Aussie-Nomad/MacForge-sub002/archive"
	"github.com/Aussie-Nomad/MacForge-sub002/builder"
	"github.com/Aussie-Nomad/MacForge-sub002/driver"
	"github.com/Aussie-Nomad/MacForge-sub002/jamf"
	"github.com/Aussie-Nomad/MacForge-sub002/mobileconfig"
	"github.com/Aussie-Nomad/MacForge-sub002/profile"
	"github.com/Aussie-Nomad/MacForge-sub002/queue"
	"github.com/Aussie-Nomad/MacForge-sub002/validate"
)

// setupServices uses the values from the config to set up the various
// components which MacForge relies on.
func setupServices(config *Config, logger log.Logger) (*serviceManager, error) {
	sm := &serviceManager{Config: config, logger: logger}
	sm.createRedisPool()
	sm.setupProfileDatastore()
	sm.setupArchiveStore()
	sm.setupJamfClient()
	sm.setupQueue()
	sm.loadSigningIdentity()
	sm.loadCompliancePolicy()
	sm.setupBuilderService()
	sm.startPublishWorker()
	if sm.err != nil {
		return nil, sm.err
	}
	return sm, nil
}

// serviceManager knows how to set up the independent components which
// make up MacForge, mainly datastores and services.
type serviceManager struct {
	ProfileDatastore profile.Datastore
	BuilderService   builder.Service
	JamfClient       *jamf.Client

	*Config
	pool            *redis.Pool
	archiveStore    *archive.Store
	queueStore      queue.Datastore
	worker          *queue.Worker
	signingIdentity *mobileconfig.Identity
	policy          *validate.Policy
	logger          log.Logger
	err             error
}

func (s *serviceManager) createRedisPool() {
	if s.err != nil || !s.Redis.Enabled {
		return
	}
	opts := []driver.ConnOption{driver.Logger(s.logger)}
	if s.Redis.Password != "" {
		opts = append(opts, driver.WithPassword(s.Redis.Password))
	}
	s.pool, s.err = driver.NewRedisPool(s.Redis.Connection, opts...)
}

func (s *serviceManager) setupProfileDatastore() {
	if s.err != nil {
		return
	}
	s.ProfileDatastore, s.err = profile.NewDB(
		"postgres",
		s.Postgres.Connection,
		profile.Logger(s.logger),
	)
}

func (s *serviceManager) setupArchiveStore() {
	if s.err != nil {
		return
	}
	var db *bolt.DB
	db, s.err = bolt.Open(s.Archive.Path, 0600, nil)
	if s.err != nil {
		return
	}
	s.archiveStore, s.err = archive.NewStore(db)
}

func (s *serviceManager) setupJamfClient() {
	if s.err != nil || !s.Jamf.Enabled {
		return
	}
	s.JamfClient, s.err = jamf.NewClient(
		s.Jamf.URL,
		s.Jamf.Token,
		jamf.WithLogger(s.logger),
	)
}

func (s *serviceManager) setupQueue() {
	if s.err != nil || !s.Redis.Enabled {
		return
	}
	s.queueStore = queue.NewStore(s.pool)
}

// loadSigningIdentity reads the export signing identity. With only a
// certificate path configured the file is treated as a .p12 bundle,
// otherwise as a PEM certificate and key pair.
func (s *serviceManager) loadSigningIdentity() {
	if s.err != nil || !s.Signing.Enabled {
		return
	}

	if s.Signing.PrivateKeyPath == "" {
		var pkcs12Data []byte
		pkcs12Data, s.err = os.ReadFile(s.Signing.CertificatePath)
		if s.err != nil {
			return
		}
		identity := &mobileconfig.Identity{}
		identity.Key, identity.Certificate, s.err =
			pkcs12.Decode(pkcs12Data, s.Signing.PrivateKeyPass)
		if s.err != nil {
			return
		}
		s.signingIdentity = identity
		return
	}

	var (
		cert *x509.Certificate
		key  interface{}
	)
	cert, s.err = loadCert(s.Signing.CertificatePath)
	if s.err != nil {
		return
	}
	key, s.err = loadKey(s.Signing.PrivateKeyPath)
	if s.err != nil {
		return
	}
	s.signingIdentity = &mobileconfig.Identity{Certificate: cert, Key: key}
}

func (s *serviceManager) loadCompliancePolicy() {
	if s.err != nil {
		return
	}
	s.policy, s.err = validate.LoadPolicy(s.Compliance.PolicyPath)
}

func (s *serviceManager) setupBuilderService() {
	if s.err != nil {
		return
	}
	opts := []builder.Option{
		builder.Recorder(s.archiveStore),
		builder.Sink(builder.DirSink(s.Export.Directory)),
		builder.Policy(s.policy),
	}
	if s.JamfClient != nil {
		opts = append(opts, builder.Publisher(s.JamfClient))
	}
	if s.queueStore != nil {
		opts = append(opts, builder.Queue(s.queueStore))
	}
	if s.signingIdentity != nil {
		opts = append(opts, builder.SigningIdentity(s.signingIdentity))
	}

	svc := builder.NewService(s.ProfileDatastore, opts...)
	svc = builder.LoggingMiddleware(log.With(s.logger, "component", "builder"))(svc)

	requestCount := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "macforge",
		Subsystem: "builder_service",
		Name:      "request_count",
		Help:      "Number of requests received.",
	}, []string{"method", "error"})
	requestLatency := kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
		Namespace: "macforge",
		Subsystem: "builder_service",
		Name:      "request_latency_seconds",
		Help:      "Total duration of requests in seconds.",
	}, []string{"method", "error"})
	svc = builder.InstrumentingMiddleware(requestCount, requestLatency)(svc)

	s.BuilderService = svc
}

// startPublishWorker drains the deferred publish queue in the
// background. It needs both the queue and a jamf client.
func (s *serviceManager) startPublishWorker() {
	if s.err != nil || s.queueStore == nil {
		return
	}
	if s.JamfClient == nil {
		s.err = errors.New("publish queue requires a jamf server connection")
		return
	}
	s.worker = queue.NewWorker(
		s.queueStore,
		s.JamfClient,
		s.archiveStore,
		log.With(s.logger, "component", "publish-worker"),
	)
	s.worker.Interval = s.Redis.WorkerInterval
	go func() {
		if err := s.worker.Run(context.Background()); err != nil {
			s.logger.Log("component", "publish-worker", "err", err)
		}
	}()
}
