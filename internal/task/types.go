package task

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further progress transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// IsActive reports whether the task counts towards the active total.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusProcessing
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}

type Type string

const (
	TypePdfToImage        Type = "pdf-to-image"
	TypeImageResize       Type = "image-resize"
	TypeImageCompress     Type = "image-compress"
	TypeEncodingConvert   Type = "encoding-convert"
	TypeFormatConvert     Type = "format-convert"
	TypePdfMerge          Type = "pdf-merge"
	TypePdfSplit          Type = "pdf-split"
	TypeVideoAudioExtract Type = "video-audio-extract"
	TypeMediaConvert      Type = "media-convert"
)

type Task struct {
	ID          string     `json:"id"`
	Type        Type       `json:"type"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Filename    string     `json:"filename"`
	TotalFiles  int        `json:"total_files,omitempty"`
	CurrentFile int        `json:"current_file,omitempty"`
	Result      []string   `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CurrentStep string     `json:"current_step,omitempty"`
	Message     string     `json:"message,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Config      Config     `json:"config,omitempty"`
}

// clone returns a copy that shares no mutable state with t.
func (t *Task) clone() Task {
	c := *t
	if t.Result != nil {
		c.Result = append([]string(nil), t.Result...)
	}
	if t.EndTime != nil {
		end := *t.EndTime
		c.EndTime = &end
	}
	return c
}

// NewTask is the input of Registry.AddTask.
type NewTask struct {
	Type       Type
	Filename   string
	TotalFiles int
	Config     Config
}

// Patch carries the fields an UpdateTask call changes. Nil fields are left untouched.
type Patch struct {
	Status      *Status
	Progress    *int
	Filename    *string
	TotalFiles  *int
	CurrentFile *int
	Result      []string
	Error       *string
	CurrentStep *string
	Message     *string
}

// Progress is the payload of Registry.UpdateTaskProgress.
type Progress struct {
	TaskID      string
	Progress    int
	CurrentStep string
	Message     string
}

type Options struct {
	// EvictAfter is how long a terminal task stays visible. Zero means DefaultEvictAfter.
	EvictAfter      time.Duration
	DisableEviction bool
	Scheduler       Scheduler
	Now             func() time.Time
}

const (
	DefaultEvictAfter    = 3 * time.Second
	defaultMaxConcurrent = 3
	progressMin          = 0
	progressMax          = 100
)

// StatusPtr and friends build Patch fields inline.
func StatusPtr(s Status) *Status { return &s }
func IntPtr(v int) *int          { return &v }
func StringPtr(s string) *string { return &s }
