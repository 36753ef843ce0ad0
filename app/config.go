package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Aussie-Nomad/MacForge-sub002/version"
)

func loadConfig() (*Config, error) {
	// cli flags, using environment variables as a possible default.
	var (
		// tls config
		flTLS     = flag.Bool("tls", envBool("MACFORGE_USE_TLS"), "use https")
		flTLSCert = flag.String("tls-cert", envString("MACFORGE_TLS_CERT", ""), "path to TLS certificate")
		flTLSKey  = flag.String("tls-key", envString("MACFORGE_TLS_KEY", ""), "path to TLS private key")

		// server settings
		flAddress     = flag.String("http-address", envString("MACFORGE_HTTP_LISTEN_ADDRESS", ""), "address to listen on")
		flCORSOrigins = flag.String("cors-origin", envString("MACFORGE_CORS_ORIGINS", ""), "allowed domain for cross origin resource sharing. comma separated")

		// jamf pro connection. publishing is disabled without it.
		flJamfURL   = flag.String("jamf-url", envString("MACFORGE_JAMF_URL", ""), "base url of the jamf pro server")
		flJamfToken = flag.String("jamf-token", envString("MACFORGE_JAMF_TOKEN", ""), "bearer token for the jamf pro api")

		// postgres connection flag. will also try to load from docker link.
		flPGconn = flag.String("postgres", envString("MACFORGE_POSTGRES_CONN_URL", ""), "postgres connection url")

		// redis connection flag. will also try to load from docker link.
		// the deferred publish queue is disabled without it.
		flRedisConn = flag.String("redis", envString("MACFORGE_REDIS_CONN_URL", ""), "redis connection url")
		flRedisPass = flag.String("redis-password", envString("MACFORGE_REDIS_PASSWORD", ""), "redis password")
		flQueueTick = flag.Duration("queue-interval", envDuration("MACFORGE_QUEUE_INTERVAL", 30*time.Second), "how often the publish worker polls the queue")

		// publish archive and profile exports
		flArchivePath = flag.String("archive-path", envString("MACFORGE_ARCHIVE_PATH", "macforge-archive.db"), "path to the publish archive database")
		flExportDir   = flag.String("export-dir", envString("MACFORGE_EXPORT_DIR", "."), "directory exported profiles are written to")

		// compliance policy. built-in tables apply when blank.
		flPolicyFile = flag.String("policy-file", envString("MACFORGE_COMPLIANCE_POLICY", ""), "path to a yaml compliance policy")

		flVersion = flag.Bool("version", false, "print version information")

		// signing identity. Can be either two PEM files or a combined .p12
		// (like the one exported from keychain access)
		flSignCert = flag.String("sign-cert", envString("MACFORGE_SIGN_CERT", ""), "path to profile signing certificate")
		flSignPass = flag.String("sign-password", envString("MACFORGE_SIGN_PASSWORD", ""), "signing certificate password")
		flSignKey  = flag.String("sign-key", envString("MACFORGE_SIGN_KEY", ""), "path to signing private key (if not using a single .p12 file)")
	)
	flag.Parse()

	if *flVersion {
		version.PrintFull()
		os.Exit(success)
	}

	config := &Config{}
	config.loadTLS(*flTLS, *flTLSCert, *flTLSKey)
	config.loadServerConfig(*flAddress, *flCORSOrigins)
	config.loadJamfConfig(*flJamfURL, *flJamfToken)
	config.loadPostgres(*flPGconn)
	config.loadRedis(*flRedisConn, *flRedisPass, *flQueueTick)
	config.loadArchiveConfig(*flArchivePath)
	config.loadExportConfig(*flExportDir)
	config.loadComplianceConfig(*flPolicyFile)
	config.loadSigningConfig(*flSignCert, *flSignKey, *flSignPass)
	if config.err != nil {
		return nil, config.err
	}
	return config, nil
}

// Config holds configuration values for MacForge. The config values
// can be loaded from CLI flags or environment variables.
type Config struct {
	TLS        *TLSConfig
	Server     *ServerConfig
	Jamf       *JamfConfig
	Postgres   *PostgresConfig
	Redis      *RedisConfig
	Archive    *ArchiveConfig
	Export     *ExportConfig
	Compliance *ComplianceConfig
	Signing    *SigningConfig

	// the err value is part of the config struct to allow multiple
	// 'loadConfigFoo' calls in sequence, without checking if err != nil every time.
	err error
}

type TLSConfig struct {
	Enabled         bool
	CertificatePath string
	PrivateKeyPath  string
}

func (c *Config) loadTLS(enabled bool, cert, key string) {
	if c.err != nil {
		return
	}
	config := &TLSConfig{
		Enabled:         enabled,
		CertificatePath: cert,
		PrivateKeyPath:  key,
	}
	if enabled && (cert == "" || key == "") {
		c.err = errors.New("certificate or key path missing in TLS config")
		return
	}
	c.TLS = config
}

// ServerConfig holds server configuration values.
type ServerConfig struct {
	ListenURL   string
	CORSOrigins []string
}

func (c *Config) loadServerConfig(listenURL, corsOrigins string) {
	if c.err != nil {
		return
	}
	config := &ServerConfig{
		ListenURL: listenURL,
	}
	if listenURL == "" {
		config.ListenURL = "0.0.0.0:8080"
	}
	if corsOrigins != "" {
		config.CORSOrigins = strings.Split(corsOrigins, ",")
	}
	c.Server = config
}

// JamfConfig holds the jamf pro server connection. Publishing operations
// are disabled when no server url is configured.
type JamfConfig struct {
	Enabled bool
	URL     string
	Token   string
}

func (c *Config) loadJamfConfig(serverURL, token string) {
	if c.err != nil {
		return
	}
	config := &JamfConfig{
		Enabled: serverURL != "",
		URL:     serverURL,
		Token:   token,
	}
	if config.Enabled && token == "" {
		c.err = errors.New("jamf-token must be specified when a jamf url is configured")
		return
	}
	c.Jamf = config
}

type PostgresConfig struct {
	Connection string
}

func (c *Config) loadPostgres(conn string) {
	if c.err != nil {
		return
	}
	config := &PostgresConfig{
		Connection: conn,
	}
	if conn == "" {
		config.fromDockerEnv()
	}
	if config.Connection == "" {
		c.err = errors.New("must provide postgres connection string")
		return
	}
	c.Postgres = config
}

// fromDockerEnv tries to load postgres connection info from a docker link.
// The name of the link is assumed to be "postgres".
// env values taken from https://hub.docker.com/_/postgres/
func (c *PostgresConfig) fromDockerEnv() {
	host, ok := os.LookupEnv("POSTGRES_PORT_5432_TCP_ADDR")
	if !ok {
		return // don't bother with the rest.
	}
	user := os.Getenv("POSTGRES_ENV_POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}
	dbname := os.Getenv("POSTGRES_ENV_POSTGRES_DB")
	if dbname == "" {
		dbname = user //same defaults as the docker pgcontainer
	}
	password := os.Getenv("POSTGRES_ENV_POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}
	sslmode := os.Getenv("POSTGRES_ENV_SSLMODE")
	if sslmode == "" {
		sslmode = "require"
	}
	c.Connection = fmt.Sprintf("user=%v password=%v dbname=%v sslmode=%v host=%v", user, password, dbname, sslmode, host)
}

// RedisConfig holds the queue backend connection. The deferred publish
// queue is disabled when no connection is configured.
type RedisConfig struct {
	Enabled        bool
	Connection     string
	Password       string
	WorkerInterval time.Duration
}

func (c *Config) loadRedis(conn, password string, interval time.Duration) {
	if c.err != nil {
		return
	}
	config := &RedisConfig{
		Connection:     conn,
		Password:       password,
		WorkerInterval: interval,
	}
	if conn == "" {
		config.fromDockerEnv()
	}
	config.Enabled = config.Connection != ""
	c.Redis = config
}

// fromDockerEnv tries to load connection information from a linked Docker
// container. The name of the link is assumed to be "redis".
func (c *RedisConfig) fromDockerEnv() {
	host, ok := os.LookupEnv("REDIS_PORT_6379_TCP_ADDR")
	if !ok {
		return
	}
	port := os.Getenv("REDIS_PORT_6379_TCP_PORT")
	c.Connection = fmt.Sprintf("%v:%v", host, port)
}

// ArchiveConfig holds the path of the publish archive database.
type ArchiveConfig struct {
	Path string
}

func (c *Config) loadArchiveConfig(path string) {
	if c.err != nil {
		return
	}
	if path == "" {
		c.err = errors.New("must provide a publish archive path")
		return
	}
	c.Archive = &ArchiveConfig{Path: path}
}

// ExportConfig holds the directory exported profiles are written to.
type ExportConfig struct {
	Directory string
}

func (c *Config) loadExportConfig(dir string) {
	if c.err != nil {
		return
	}
	info, err := os.Stat(dir)
	if err != nil {
		c.err = fmt.Errorf("export directory: %v", err)
		return
	}
	if !info.IsDir() {
		c.err = fmt.Errorf("export directory %v is not a directory", dir)
		return
	}
	c.Export = &ExportConfig{Directory: dir}
}

// ComplianceConfig points at an optional yaml policy file. The built-in
// tables apply when the path is blank.
type ComplianceConfig struct {
	PolicyPath string
}

func (c *Config) loadComplianceConfig(path string) {
	if c.err != nil {
		return
	}
	c.Compliance = &ComplianceConfig{PolicyPath: path}
}

// SigningConfig holds values for the profile signing identity. The
// private key can be either a PEM or a p12 file. Exports are unsigned
// when no certificate is configured.
type SigningConfig struct {
	Enabled         bool
	CertificatePath string
	PrivateKeyPath  string
	PrivateKeyPass  string
}

func (c *Config) loadSigningConfig(certPath, keyPath, keyPassword string) {
	if c.err != nil {
		return
	}
	config := &SigningConfig{
		Enabled:         certPath != "",
		CertificatePath: certPath,
		PrivateKeyPath:  keyPath,
		PrivateKeyPass:  keyPassword,
	}
	if keyPath != "" && certPath == "" {
		c.err = errors.New("sign-key requires a sign-cert")
		return
	}
	c.Signing = config
}

func envString(key, def string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	return def
}

func envBool(key string) bool {
	if env := os.Getenv(key); env == "true" {
		return true
	}
	return false
}

func envDuration(key string, def time.Duration) time.Duration {
	env := os.Getenv(key)
	if env == "" {
		return def
	}
	d, err := time.ParseDuration(env)
	if err != nil {
		return def
	}
	return d
}
