package store

import "time"

// Status is a queue entry's lifecycle state. The status column doubles as the
// coordination primitive between the dispatch worker and client calls: every
// transition is a compare-and-swap on the previous status.
type Status string

const (
	StatusNew          Status = "NEW"          // job created, scene not yet finalized
	StatusUploading    Status = "UPLOADING"    // client is uploading scene data
	StatusPending      Status = "PENDING"      // finalized, awaiting distribution
	StatusDistributing Status = "DISTRIBUTING" // scene moving to network storage
	StatusReady        Status = "READY"        // scene on network storage, awaiting a worker
	StatusRendering    Status = "RENDERING"    // assigned to a render worker
	// There is no completed status: a finished job becomes a Result row.
	StatusError Status = "ERROR"
)

// ResultStatus is the terminal disposition of a finished job.
type ResultStatus string

const (
	ResultRenderComplete ResultStatus = "RENDER_COMPLETE"
	ResultOffline        ResultStatus = "OFFLINE"
	ResultWorkerFailure  ResultStatus = "WORKER_FAILURE"
	ResultSceneFailure   ResultStatus = "SCENE_FAILURE"
	ResultNoCredit       ResultStatus = "NO_CREDIT"
)

// Job is a queued render request.
type Job struct {
	ID         int64
	UserID     int64
	JobName    string
	Path       string
	HaltSPP    int
	HaltTime   int
	Submitted  time.Time
	Status     Status
	StatusData string
}

// Result is the immutable record of a finished or permanently failed job.
type Result struct {
	ID        int64
	UserID    int64
	JobName   string
	Path      string
	Completed time.Time
	Status    ResultStatus
}

// User holds account credentials and role.
type User struct {
	ID       int64
	Username string
	Email    string
	Password string
	Role     string
	IsActive bool
}

// SessionState is the typed per-session state bag. DispatcherKey holds the
// pending one-time key for the next privileged dispatcher call, or "" if none.
type SessionState struct {
	LoggedIn      bool
	DispatcherKey string
}
