package profile

import (
	"database/sql"
	"encoding/json"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/Aussie-Nomad/MacForge-sub002/driver"
)

var (
	// ErrNotFound is returned when no profile exists under the requested
	// identifier.
	ErrNotFound = errors.New("profile not found")
	//sql stmt
	saveProfileStmt = `INSERT INTO profile_drafts (identifier, data) VALUES ($1, $2)
					   ON CONFLICT (identifier) DO UPDATE SET data = $2
					   RETURNING profile_uuid;`
	selectProfilesStmt = `SELECT data FROM profile_drafts ORDER BY identifier`
	selectProfileStmt  = `SELECT data FROM profile_drafts WHERE identifier = $1 LIMIT 1`
	deleteProfileStmt  = `DELETE FROM profile_drafts WHERE identifier = $1`
)

// Datastore keeps profile drafts between editing sessions. Drafts are
// not validated on the way in; validation happens on demand.
type Datastore interface {
	SaveProfile(*Profile) (*Profile, error)
	Profiles() ([]Profile, error)
	ProfileByIdentifier(identifier string) (*Profile, error)
	DeleteProfile(identifier string) error
}

type pgDatastore struct {
	info  log.Logger
	debug log.Logger
	*sqlx.DB
}

func (db pgDatastore) SaveProfile(pf *Profile) (*Profile, error) {
	data, err := json.Marshal(pf)
	if err != nil {
		return nil, errors.Wrap(err, "encode profile draft")
	}
	var uuid string
	err = db.QueryRow(saveProfileStmt, pf.Identifier, data).Scan(&uuid)
	if err != nil {
		db.info.Log("err", err, "profile", pf.Identifier)
		return nil, errors.Wrap(err, "save profile draft")
	}
	db.debug.Log("action", "SaveProfile", "profile", pf.Identifier, "uuid", uuid, "status", "success")
	return pf, nil
}

func (db pgDatastore) Profiles() ([]Profile, error) {
	var rows [][]byte
	if err := db.Select(&rows, selectProfilesStmt); err != nil {
		db.debug.Log("action", "Profiles", "err", err)
		return nil, errors.Wrap(err, "list profile drafts")
	}
	profiles := make([]Profile, 0, len(rows))
	for _, data := range rows {
		var pf Profile
		if err := json.Unmarshal(data, &pf); err != nil {
			return nil, errors.Wrap(err, "decode profile draft")
		}
		profiles = append(profiles, pf)
	}
	return profiles, nil
}

func (db pgDatastore) ProfileByIdentifier(identifier string) (*Profile, error) {
	var data []byte
	err := db.Get(&data, selectProfileStmt, identifier)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get profile draft")
	}
	var pf Profile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, errors.Wrap(err, "decode profile draft")
	}
	return &pf, nil
}

func (db pgDatastore) DeleteProfile(identifier string) error {
	result, err := db.Exec(deleteProfileStmt, identifier)
	if err != nil {
		return errors.Wrap(err, "delete profile draft")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete profile draft")
	}
	if affected == 0 {
		return ErrNotFound
	}
	db.debug.Log("action", "DeleteProfile", "profile", identifier, "status", "success")
	return nil
}

// boilerplate

type config struct {
	logger log.Logger
	debug  bool
}

// Logger adds a logger to the datastore.
func Logger(logger log.Logger) func(*config) error {
	return func(c *config) error {
		c.logger = logger
		return nil
	}
}

// Debug enables debug logging in the datastore.
func Debug() func(*config) error {
	return func(c *config) error {
		c.debug = true
		return nil
	}
}

func infoLogger(conf *config) log.Logger {
	return level.Info(conf.logger)
}

func debugLogger(conf *config) log.Logger {
	if conf.debug {
		return log.With(level.Debug(conf.logger), "caller", log.DefaultCaller)
	}
	return log.NewNopLogger()
}

// NewDB creates a new database connection for the draft store.
func NewDB(driverName, conn string, options ...func(*config) error) (Datastore, error) {
	conf := &config{
		logger: log.NewNopLogger(),
	}
	for _, option := range options {
		if err := option(conf); err != nil {
			return nil, err
		}
	}
	switch driverName {
	case "postgres":
		db, err := driver.NewSQLxDB(driverName, conn, driver.Logger(conf.logger))
		if err != nil {
			return nil, err
		}
		if err := migrate(db); err != nil {
			return nil, err
		}
		// TODO: configurable with default
		db.SetMaxOpenConns(5)
		store := pgDatastore{
			info:  infoLogger(conf),
			debug: debugLogger(conf),
			DB:    db,
		}
		return store, nil
	default:
		return nil, errors.Errorf("unknown driver %q", driverName)
	}
}

func migrate(db *sqlx.DB) error {
	schema := `
	CREATE EXTENSION IF NOT EXISTS "uuid-ossp";
	CREATE TABLE IF NOT EXISTS profile_drafts (
	  profile_uuid uuid PRIMARY KEY
	            DEFAULT uuid_generate_v4(),
	  identifier text UNIQUE NOT NULL,
	  data jsonb NOT NULL
	  );`

	_, err := db.Exec(schema)
	return errors.Wrap(err, "migrate profile_drafts")
}
