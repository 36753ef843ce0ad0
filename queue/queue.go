// Package queue holds serialized profiles waiting to be published. Jobs
// live in redis so a crash between serialization and upload loses
// nothing; a worker drains the pending list and gives every job exactly
// one publish attempt.
package queue

import (
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/groob/plist"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// redis keys
const (
	pendingKey   = "publish:pending"
	failedKey    = "publish:failed"
	jobKeyPrefix = "publish:job:"
)

// ErrNoJob is returned when a job id on a list has no job blob behind it.
var ErrNoJob = errors.New("queue: job data missing")

// Job is one deferred publish: the profile bytes were serialized at
// enqueue time, so the worker uploads exactly what the caller approved.
type Job struct {
	ID         string
	Name       string
	Identifier string
	Payload    []byte
	EnqueuedAt int64
}

// NewJob stamps a publish job with an id and the current time.
func NewJob(name, identifier string, payload []byte) Job {
	return Job{
		ID:         uuid.NewV4().String(),
		Name:       name,
		Identifier: identifier,
		Payload:    payload,
		EnqueuedAt: time.Now().UnixNano(),
	}
}

// Datastore manages publish jobs in redis.
type Datastore interface {
	// Enqueue stores the job blob and pushes its id on the pending list.
	Enqueue(Job) error
	// Dequeue pops the oldest pending job, or returns nil when the
	// pending list is empty.
	Dequeue() (*Job, error)
	// Complete removes a finished job's blob.
	Complete(Job) error
	// Fail moves the job id to the failed list. The blob is kept for
	// inspection.
	Fail(Job) error
	// FailedJobs lists jobs that terminated in failure.
	FailedJobs() ([]Job, error)
}

type redisDB struct {
	pool *redis.Pool
}

// NewStore creates a job datastore on an existing redis pool.
func NewStore(pool *redis.Pool) Datastore {
	return redisDB{pool: pool}
}

func (rds redisDB) Enqueue(job Job) error {
	conn := rds.pool.Get()
	defer conn.Close()

	data, err := plist.Marshal(&job)
	if err != nil {
		return errors.Wrap(err, "encode publish job")
	}
	if _, err := conn.Do("SET", jobKeyPrefix+job.ID, data); err != nil {
		return errors.Wrap(err, "store publish job")
	}
	if _, err := conn.Do("LPUSH", pendingKey, job.ID); err != nil {
		return errors.Wrap(err, "queue publish job")
	}
	return nil
}

func (rds redisDB) Dequeue() (*Job, error) {
	conn := rds.pool.Get()
	defer conn.Close()

	id, err := redis.String(conn.Do("RPOP", pendingKey))
	if err == redis.ErrNil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "pop publish job")
	}
	return getJob(conn, id)
}

func (rds redisDB) Complete(job Job) error {
	conn := rds.pool.Get()
	defer conn.Close()

	_, err := conn.Do("DEL", jobKeyPrefix+job.ID)
	return errors.Wrap(err, "remove publish job")
}

func (rds redisDB) Fail(job Job) error {
	conn := rds.pool.Get()
	defer conn.Close()

	_, err := conn.Do("LPUSH", failedKey, job.ID)
	return errors.Wrap(err, "record failed job")
}

func (rds redisDB) FailedJobs() ([]Job, error) {
	conn := rds.pool.Get()
	defer conn.Close()

	ids, err := redis.Strings(conn.Do("LRANGE", failedKey, 0, -1))
	if err != nil {
		return nil, errors.Wrap(err, "list failed jobs")
	}
	jobs := make([]Job, 0, len(ids))
	for _, id := range ids {
		job, err := getJob(conn, id)
		if err == ErrNoJob {
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func getJob(conn redis.Conn, id string) (*Job, error) {
	data, err := redis.Bytes(conn.Do("GET", jobKeyPrefix+id))
	if err == redis.ErrNil {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, errors.Wrap(err, "get publish job")
	}
	var job Job
	if err := plist.Unmarshal(data, &job); err != nil {
		return nil, errors.Wrap(err, "decode publish job")
	}
	return &job, nil
}
