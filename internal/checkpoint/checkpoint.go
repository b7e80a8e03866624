// Package checkpoint persists batch progress after every clip so an
// interrupted run can resume losing at most the one in-flight clip. The
// checkpoint file is owned exclusively by a single orchestrator instance,
// enforced by a lock file.
package checkpoint

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Sentinel errors for resume handling.
var (
	// ErrCorrupt marks an unreadable or invalid checkpoint document.
	// Fatal for --resume; a fresh run is always a valid remediation.
	ErrCorrupt = errors.New("checkpoint corrupt")

	// ErrLocked means another orchestrator instance owns the checkpoint.
	// Fatal, no retry.
	ErrLocked = errors.New("checkpoint locked by another run")
)

// VideoStatus is the per-video state machine value.
type VideoStatus string

const (
	StatusPending    VideoStatus = "pending"
	StatusInProgress VideoStatus = "in_progress"
	StatusCompleted  VideoStatus = "completed"
	StatusFailed     VideoStatus = "failed"
)

// VideoState records one video's status and the set of clip indices
// already successfully encoded.
type VideoState struct {
	Status    VideoStatus `json:"status"`
	DoneClips []int       `json:"done_clip_indices"`
}

// Checkpoint is the durable record of batch progress. All mutation goes
// through the Mark* methods; Save persists atomically.
type Checkpoint struct {
	RunID     string                 `json:"run_id"`
	Project   string                 `json:"project"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Videos    map[string]*VideoState `json:"videos"`

	path string
}

// New returns an empty checkpoint bound to path. runID ties the
// checkpoint to the lock file of the instance that created it.
func New(path, project, runID string) *Checkpoint {
	c := &Checkpoint{
		RunID:     runID,
		Project:   project,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
		Videos:    make(map[string]*VideoState),
	}
	c.path = path
	return c
}

// Exists reports whether a checkpoint file is present at path. Absence
// means "no in-progress batch".
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load reads and validates the checkpoint at path. Any read or decode
// failure, or a structurally invalid document, is reported as ErrCorrupt.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "read %s: %v", path, err)
	}

	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "parse %s: %v", path, err)
	}
	if c.RunID == "" || c.Videos == nil {
		return nil, errors.Wrapf(ErrCorrupt, "%s: missing run_id or videos", path)
	}
	for video, vs := range c.Videos {
		if vs == nil {
			return nil, errors.Wrapf(ErrCorrupt, "%s: nil state for %s", path, video)
		}
		switch vs.Status {
		case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		default:
			return nil, errors.Wrapf(ErrCorrupt, "%s: unknown status %q for %s", path, vs.Status, video)
		}
	}
	c.path = path
	return &c, nil
}

// Save persists the checkpoint with write-temp-then-rename discipline so
// an interrupt mid-write never leaves a corrupt document behind.
func (c *Checkpoint) Save() error {
	c.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode checkpoint")
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write checkpoint")
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "replace checkpoint")
	}
	return nil
}

// Archive renames the checkpoint aside once the batch reaches a terminal
// state with zero pending videos.
func (c *Checkpoint) Archive() error {
	dst := c.path + ".done-" + time.Now().UTC().Format("20060102150405")
	return os.Rename(c.path, dst)
}

// Discard removes any checkpoint file at path (fresh, non-resume runs).
func Discard(path string) {
	os.Remove(path)
}

func (c *Checkpoint) state(video string) *VideoState {
	vs, ok := c.Videos[video]
	if !ok {
		vs = &VideoState{Status: StatusPending}
		c.Videos[video] = vs
	}
	return vs
}

// MarkInProgress transitions a video to in_progress.
func (c *Checkpoint) MarkInProgress(video string) {
	c.state(video).Status = StatusInProgress
}

// MarkCompleted transitions a video to completed. A video is completed
// once every clip has been attempted; clip-level failures do not make
// the video failed.
func (c *Checkpoint) MarkCompleted(video string) {
	c.state(video).Status = StatusCompleted
}

// MarkFailed records a video-level failure (e.g. unreadable source).
func (c *Checkpoint) MarkFailed(video string) {
	c.state(video).Status = StatusFailed
}

// MarkClipDone records one successfully encoded clip index.
func (c *Checkpoint) MarkClipDone(video string, index int) {
	vs := c.state(video)
	for _, d := range vs.DoneClips {
		if d == index {
			return
		}
	}
	vs.DoneClips = append(vs.DoneClips, index)
	sort.Ints(vs.DoneClips)
}

// IsClipDone reports whether the clip index was already encoded.
func (c *Checkpoint) IsClipDone(video string, index int) bool {
	vs, ok := c.Videos[video]
	if !ok {
		return false
	}
	for _, d := range vs.DoneClips {
		if d == index {
			return true
		}
	}
	return false
}

// IsCompleted reports whether the video already ran to completion;
// resuming such a video is a no-op.
func (c *Checkpoint) IsCompleted(video string) bool {
	vs, ok := c.Videos[video]
	return ok && vs.Status == StatusCompleted
}
