package common

import "sync"

type Job func() error

// JobQueue runs jobs one after another on a single background goroutine, in the order they were enqueued.
type JobQueue struct {
	jobsChannel chan Job
	stopChannel chan struct{}
	stopOnce    sync.Once
	waitGroup   sync.WaitGroup
	logger      Logger
}

func NewJobQueue(logger Logger) *JobQueue {
	worker := &JobQueue{
		jobsChannel: make(chan Job, 128),
		stopChannel: make(chan struct{}),
		logger:      logger,
	}
	worker.waitGroup.Add(1)
	go worker.run()
	return worker
}

// Enqueue returns false if the queue is full or stopped; the job is dropped in that case.
func (j *JobQueue) Enqueue(job Job) bool {
	select {
	case <-j.stopChannel:
		return false
	default:
	}
	select {
	case j.jobsChannel <- job:
		return true
	default:
		j.logger.Log("job queue is full, dropping a job")
		return false
	}
}

// Stop waits for the job in progress (if any) and discards the rest.
func (j *JobQueue) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopChannel)
	})
	j.waitGroup.Wait()
}

func (j *JobQueue) run() {
	defer j.waitGroup.Done()
	for {
		select {
		case <-j.stopChannel:
			return
		case job := <-j.jobsChannel:
			err := job()
			if err != nil {
				j.logger.Log("failed to process a job: " + err.Error())
			}
		}
	}
}
