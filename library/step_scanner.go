package library

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Scanner worker, runs queued scans one at a time so the registry only has one writer

type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

type JobStatus struct {
	ID       uuid.UUID `json:"id"`
	Roots    []string  `json:"roots"`
	State    JobState  `json:"state"`
	Added    int       `json:"added"`
	Error    string    `json:"error,omitempty"`
	Queued   time.Time `json:"queued"`
	Started  time.Time `json:"started,omitempty"`
	Finished time.Time `json:"finished,omitempty"`
}

// ScanJob looks up a queued or finished scan
func (lib *Library) ScanJob(id uuid.UUID) (JobStatus, bool) {
	lib.jobsLock.RLock()
	defer lib.jobsLock.RUnlock()
	job, ok := lib.jobs[id]
	if !ok {
		return JobStatus{}, false
	}
	return *job, true
}

func (lib *Library) scanWorker() {
	defer lib.waitgroup.Done()
	defer log.Info().Msg("scanWorker task exiting")
	status := lib.registerTask("Scanner")
	defer status.UpdateStatus("Exited")
	status.UpdateStatus("Idle")

	for {
		select {
		case <-lib.ctx.Done():
			lib.drainQueued()
			return
		case request := <-lib.scanRequests:
			lib.startJob(request.id)
			status.UpdateStatus("Scanning")
			added, err := lib.ScanNow(lib.ctx, request.roots...)
			if err != nil {
				log.Warn().Err(err).Str("job", request.id.String()).Msg("Scan finished with errors")
			}
			lib.finishJob(request.id, added, err)
			status.UpdateStatus("Idle")
		}
	}
}

// drainQueued fails every request still waiting in the queue
func (lib *Library) drainQueued() {
	for {
		select {
		case request := <-lib.scanRequests:
			lib.finishJob(request.id, 0, ErrStopped)
		default:
			return
		}
	}
}

func (lib *Library) startJob(id uuid.UUID) {
	lib.jobsLock.Lock()
	defer lib.jobsLock.Unlock()
	if job, ok := lib.jobs[id]; ok {
		job.State = JobRunning
		job.Started = time.Now()
	}
}

func (lib *Library) finishJob(id uuid.UUID, added int, err error) {
	lib.jobsLock.Lock()
	defer lib.jobsLock.Unlock()
	job, ok := lib.jobs[id]
	if !ok {
		return
	}
	job.Added = added
	job.Finished = time.Now()
	job.State = JobDone
	if err != nil {
		job.State = JobFailed
		job.Error = err.Error()
	}
	lib.trimJobs()
}

// trimJobs forgets the oldest finished jobs beyond keepJobs. Caller holds jobsLock
func (lib *Library) trimJobs() {
	finished := make([]*JobStatus, 0, len(lib.jobs))
	for _, job := range lib.jobs {
		if job.State == JobDone || job.State == JobFailed {
			finished = append(finished, job)
		}
	}
	if len(finished) <= lib.keepJobs {
		return
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].Finished.Before(finished[j].Finished) })
	for _, job := range finished[:len(finished)-lib.keepJobs] {
		delete(lib.jobs, job.ID)
	}
}
