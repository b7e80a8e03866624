// Package batch orchestrates the run: video discovery, checkpointed
// sequential processing, per-clip encoding with progress display, and
// the export artifacts written after each video.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"

	"github.com/backmassage/clipforge/internal/checkpoint"
	"github.com/backmassage/clipforge/internal/config"
	"github.com/backmassage/clipforge/internal/display"
	"github.com/backmassage/clipforge/internal/encode"
	"github.com/backmassage/clipforge/internal/export"
	"github.com/backmassage/clipforge/internal/logging"
	"github.com/backmassage/clipforge/internal/naming"
	"github.com/backmassage/clipforge/internal/plan"
	"github.com/backmassage/clipforge/internal/probe"
	"github.com/backmassage/clipforge/internal/quality"
	"github.com/backmassage/clipforge/internal/term"
)

// checkpointName is the durable progress file, written under the output
// directory (not the project directory, so a resumed run can find it
// before the project name is known).
const checkpointName = ".clipforge_checkpoint.json"

const defaultEDLRate = 30.0

// clipEncoder is the executor surface the orchestrator drives. Satisfied
// by *encode.Executor; swapped for a fake in tests.
type clipEncoder interface {
	Encode(ctx context.Context, clip plan.ClipSpec, preset quality.Preset, outputPath string) encode.Result
}

// Orchestrator runs one batch: it owns the checkpoint, the lock, and the
// accumulated metadata records. Videos are processed sequentially; clip
// failures are recorded and never abort the batch.
type Orchestrator struct {
	cfg    *config.Config
	log    *logging.Logger
	prober *probe.Prober
	enc    clipEncoder
	preset quality.Preset

	// describe and detect are the prober and plan.DetectScenes in
	// production; injectable for tests.
	describe func(path string) (*probe.VideoDescriptor, error)
	detect   func(ctx context.Context, path string, duration float64, o plan.SceneOptions) ([]plan.Span, error)
	// validExisting backs --skip-existing; encode.ValidateOutput in production.
	validExisting func(path string) error

	runStart time.Time
	// nameStamp feeds the {timestamp} naming placeholder. Fresh runs use
	// the checkpoint creation time; resumed runs restore it from the
	// checkpoint so output names match the earlier run's files.
	nameStamp time.Time
	fps       float64 // frame rate of the first probed video, for the EDL

	records []export.ClipMetadataRecord
}

// NewOrchestrator wires an orchestrator from validated config. hwEncoder
// is the hardware capability value resolved at startup ("" for CPU only).
func NewOrchestrator(cfg *config.Config, log *logging.Logger, hwEncoder string) *Orchestrator {
	preset, _ := quality.Lookup(cfg.Quality)
	o := &Orchestrator{
		cfg:           cfg,
		log:           log,
		prober:        probe.NewProber(),
		enc:           encode.NewExecutor(cfg, log, hwEncoder),
		preset:        preset,
		detect:        plan.DetectScenes,
		validExisting: encode.ValidateOutput,
		runStart:      time.Now(),
	}
	o.nameStamp = o.runStart
	o.describe = o.prober.Describe
	return o
}

// Run executes the batch. Setup failures (no videos, a corrupt checkpoint
// under --resume, a held lock) are returned as errors; per-video and
// per-clip failures are counted in the returned stats instead.
func (o *Orchestrator) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	videos, err := Discover(o.cfg.InputPath)
	if err != nil {
		return stats, err
	}
	if len(videos) == 0 {
		return stats, errors.Errorf("no video files found under %s", o.cfg.InputPath)
	}
	stats.TotalVideos = len(videos)

	if o.cfg.DryRun {
		// Dry runs plan and report only: no lock, no checkpoint access,
		// nothing on disk changes.
		project := naming.ProjectName(o.cfg.ProjectName, videos[0], o.runStart)
		o.dryRun(ctx, videos, project, &stats)
		return stats, nil
	}

	if err := os.MkdirAll(o.cfg.OutputDir, 0o755); err != nil {
		return stats, errors.Wrap(err, "create output directory")
	}

	// The lock precedes any checkpoint read or discard so a second
	// instance is turned away before it can disturb the owner's state.
	runID := uuid.NewString()
	lockPath := filepath.Join(o.cfg.OutputDir, checkpointName+".lock")
	lock, err := checkpoint.AcquireLock(lockPath, runID)
	if err != nil {
		return stats, err
	}
	defer lock.Release()

	cp, project, err := o.openCheckpoint(videos[0], runID)
	if err != nil {
		return stats, err
	}
	// Output names derive from the checkpoint's creation time, not the
	// process start, so {timestamp} patterns stay stable across resumes.
	o.nameStamp = cp.CreatedAt

	dirs, err := makeProjectDirs(o.cfg.OutputDir, project)
	if err != nil {
		return stats, err
	}

	o.logHeader(project, &stats)

	for i, video := range videos {
		stats.Current = i + 1

		if ctx.Err() != nil {
			stats.Interrupted = true
			break
		}

		o.processVideo(ctx, cp, video, project, dirs, &stats)
		if stats.Interrupted {
			break
		}
	}

	if err := o.writeExports(project, dirs); err != nil {
		o.log.Error("Export failed: %v", err)
	}

	if stats.Interrupted {
		o.log.Warn("Interrupted; checkpoint kept for --resume")
	} else if allTerminal(cp, videos) {
		if err := cp.Archive(); err != nil {
			o.log.Warn("Could not archive checkpoint: %v", err)
		}
	}

	o.logSummary(&stats)
	return stats, nil
}

// openCheckpoint loads the existing checkpoint under --resume or starts a
// fresh one. A fresh run discards any stale checkpoint; a corrupt one
// under --resume is fatal (rerunning without --resume is the remediation).
func (o *Orchestrator) openCheckpoint(firstVideo, runID string) (*checkpoint.Checkpoint, string, error) {
	path := filepath.Join(o.cfg.OutputDir, checkpointName)

	if o.cfg.Resume && checkpoint.Exists(path) {
		cp, err := checkpoint.Load(path)
		if err != nil {
			return nil, "", err
		}
		o.log.Info("Resuming run %s (project %s)", cp.RunID, cp.Project)
		return cp, cp.Project, nil
	}

	if o.cfg.Resume {
		o.log.Info("No checkpoint found; starting a fresh run")
	} else {
		checkpoint.Discard(path)
	}

	project := naming.ProjectName(o.cfg.ProjectName, firstVideo, o.runStart)
	return checkpoint.New(path, project, runID), project, nil
}

// processVideo handles one source video: probe, plan, encode each clip
// with a checkpoint save after every one, then mark the video terminal.
func (o *Orchestrator) processVideo(
	ctx context.Context,
	cp *checkpoint.Checkpoint,
	video, project string,
	dirs projectDirs,
	stats *RunStats,
) {
	basename := filepath.Base(video)
	o.log.Info("[%d/%d] %s", stats.Current, stats.TotalVideos, basename)

	desc, err := o.describe(video)
	if err != nil {
		o.log.Error("Cannot read source: %v", err)
		cp.MarkFailed(video)
		o.save(cp)
		stats.VideosFailed++
		fmt.Println()
		return
	}
	if o.fps == 0 && desc.FrameRate > 0 {
		o.fps = desc.FrameRate
	}

	clips, err := o.planClips(ctx, desc, project)
	if err != nil {
		o.log.Error("Cannot plan clips: %v", err)
		cp.MarkFailed(video)
		o.save(cp)
		stats.VideosFailed++
		fmt.Println()
		return
	}
	stats.ClipsPlanned += len(clips)

	if cp.IsCompleted(video) {
		// Already ran to completion in a previous run; keep its records
		// so the metadata document stays complete across resumes.
		o.log.Info("Already completed (%d clips), skipping", len(clips))
		o.recoverRecords(cp, video, clips, dirs)
		stats.VideosSkipped++
		fmt.Println()
		return
	}

	o.log.Info("  %s, %d clips", display.FormatSeconds(desc.Duration), len(clips))

	cp.MarkInProgress(video)
	o.save(cp)

	bar := newClipBar(basename, len(clips))

	for _, clip := range clips {
		if ctx.Err() != nil {
			stats.Interrupted = true
			bar.Finish()
			fmt.Println()
			return
		}

		outputPath := filepath.Join(dirs.clips, clip.OutputName+".mp4")

		if cp.IsClipDone(video, clip.Index) {
			o.records = append(o.records, o.recordFor(clip, outputPath))
			stats.ClipsSkipped++
			bar.Add(1)
			continue
		}

		if o.cfg.SkipExisting && o.validExisting(outputPath) == nil {
			o.log.Debug(o.cfg.Verbose, "  Clip %03d exists, counting as done", clip.Index+1)
			cp.MarkClipDone(video, clip.Index)
			o.save(cp)
			o.records = append(o.records, o.recordFor(clip, outputPath))
			stats.ClipsSkipped++
			bar.Add(1)
			continue
		}

		res := o.enc.Encode(ctx, clip, o.preset, outputPath)
		if res.Interrupted {
			// The in-flight clip stays pending; resume re-encodes it.
			o.save(cp)
			stats.Interrupted = true
			bar.Finish()
			fmt.Println()
			return
		}
		switch res.Outcome {
		case encode.OutcomeSuccess:
			cp.MarkClipDone(video, clip.Index)
			o.records = append(o.records, o.recordFor(clip, outputPath))
			stats.ClipsEncoded++
			stats.OutputBytes += res.OutputSize
		default:
			stats.ClipsFailed++
			o.log.Error("  Clip %03d failed after %d attempt(s): %s",
				clip.Index+1, res.Attempts, res.FailureReason)
		}
		o.save(cp)
		bar.Add(1)
	}
	bar.Finish()

	// Every clip was attempted; clip failures do not fail the video.
	cp.MarkCompleted(video)
	o.save(cp)
	stats.VideosDone++
	fmt.Println()
}

// planClips computes clip boundaries for one video and resolves output
// names. Scene detection falls back to the fixed interval when the
// analysis pass is unusable.
func (o *Orchestrator) planClips(ctx context.Context, desc *probe.VideoDescriptor, project string) ([]plan.ClipSpec, error) {
	var spans []plan.Span
	var err error

	if o.cfg.SceneDetection {
		spans, err = o.detect(ctx, desc.Path, desc.Duration, plan.SceneOptions{
			Threshold:        o.cfg.SceneThreshold,
			MinSceneDuration: o.cfg.MinSceneDuration,
			MinTrailing:      o.cfg.MinTrailing,
			DropShortTail:    o.cfg.DropShortTail,
		})
		if errors.Is(err, plan.ErrDetectionUnavailable) {
			o.log.Warn("  Scene detection unavailable (%v); using fixed intervals", err)
			err = nil
			spans = nil
		}
	}
	if spans == nil && err == nil {
		spans, err = plan.FixedInterval(desc.Duration, o.cfg.ClipDuration, o.cfg.MinTrailing)
	}
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(desc.Path), filepath.Ext(desc.Path))
	name := naming.CleanName(stem)

	return plan.Clips(desc.Path, spans, func(i int) string {
		return naming.Resolve(o.cfg.NamingPattern, naming.Context{
			Project:   project,
			Name:      name,
			Num:       i + 1,
			Duration:  spans[i].Length(),
			Timestamp: o.nameStamp,
		})
	}), nil
}

// recordFor builds the metadata record for one produced clip. For clips
// recovered from a checkpoint the creation time comes from the output
// file itself.
func (o *Orchestrator) recordFor(clip plan.ClipSpec, outputPath string) export.ClipMetadataRecord {
	created := time.Now().UTC()
	if fi, err := os.Stat(outputPath); err == nil {
		created = fi.ModTime().UTC()
	}
	return export.ClipMetadataRecord{
		Index:       clip.Index,
		SourceVideo: clip.VideoPath,
		Start:       clip.Span.Start,
		End:         clip.Span.End,
		OutputPath:  outputPath,
		CreatedAt:   created,
	}
}

// recoverRecords reconstructs metadata records for a video completed in a
// previous run. Clip boundaries are deterministic for a given config, so
// the recovered records match what the original run produced.
func (o *Orchestrator) recoverRecords(cp *checkpoint.Checkpoint, video string, clips []plan.ClipSpec, dirs projectDirs) {
	for _, clip := range clips {
		if !cp.IsClipDone(video, clip.Index) {
			continue
		}
		outputPath := filepath.Join(dirs.clips, clip.OutputName+".mp4")
		o.records = append(o.records, o.recordFor(clip, outputPath))
	}
}

// writeExports rewrites the project artifacts from the accumulated
// records: metadata document, editor import script, and EDL.
func (o *Orchestrator) writeExports(project string, dirs projectDirs) error {
	if err := export.WriteMetadata(filepath.Join(dirs.metadata, "project_metadata.json"), o.records); err != nil {
		return err
	}
	if err := export.WriteResolveScript(filepath.Join(dirs.resolve, "project_import.py"), project, o.records); err != nil {
		return err
	}
	fps := o.fps
	if fps <= 0 {
		fps = defaultEDLRate
	}
	return export.WriteEDL(filepath.Join(dirs.resolve, "timeline.edl"), project, fps, o.records)
}

// dryRun reports what a real run would do, without encoding or touching
// the checkpoint.
func (o *Orchestrator) dryRun(ctx context.Context, videos []string, project string, stats *RunStats) {
	o.logHeader(project, stats)

	for i, video := range videos {
		stats.Current = i + 1
		if ctx.Err() != nil {
			stats.Interrupted = true
			return
		}

		o.log.Info("[%d/%d] %s", stats.Current, stats.TotalVideos, filepath.Base(video))
		desc, err := o.describe(video)
		if err != nil {
			o.log.Error("Cannot read source: %v", err)
			stats.VideosFailed++
			continue
		}
		clips, err := o.planClips(ctx, desc, project)
		if err != nil {
			o.log.Error("Cannot plan clips: %v", err)
			stats.VideosFailed++
			continue
		}
		stats.ClipsPlanned += len(clips)
		for _, c := range clips {
			o.log.Info("  [DRY] %s.mp4  %s - %s",
				c.OutputName,
				display.FormatSeconds(c.Span.Start),
				display.FormatSeconds(c.Span.End))
		}
		stats.VideosDone++
	}
	o.log.Success("[DRY] Would encode %d clips from %d videos", stats.ClipsPlanned, stats.TotalVideos)
}

// save persists the checkpoint, logging instead of failing: losing one
// save costs at most one re-encoded clip on resume.
func (o *Orchestrator) save(cp *checkpoint.Checkpoint) {
	if err := cp.Save(); err != nil {
		o.log.Warn("Checkpoint save failed: %v", err)
	}
}

func (o *Orchestrator) logHeader(project string, stats *RunStats) {
	o.log.Info("Found %d video(s)", stats.TotalVideos)
	o.log.Info("Project: %s", project)
	o.log.Info("Quality: %s", o.cfg.Quality)
	if o.cfg.SceneDetection {
		o.log.Info("Segmentation: scene detection (threshold %.2f, min scene %.0fs)",
			o.cfg.SceneThreshold, o.cfg.MinSceneDuration)
	} else {
		o.log.Info("Segmentation: fixed %.0fs intervals", o.cfg.ClipDuration)
	}
	fmt.Println()
}

func (o *Orchestrator) logSummary(stats *RunStats) {
	o.log.Info("==============================")
	o.log.Info("Videos: %d done, %d skipped, %d failed",
		stats.VideosDone, stats.VideosSkipped, stats.VideosFailed)
	o.log.Info("Clips:  %d encoded, %d skipped, %d failed",
		stats.ClipsEncoded, stats.ClipsSkipped, stats.ClipsFailed)
	if stats.OutputBytes > 0 {
		o.log.Success("Output: %s", display.FormatBytes(stats.OutputBytes))
	}
}

// projectDirs is the on-disk layout of one project under the output
// directory.
type projectDirs struct {
	root     string
	clips    string
	metadata string
	resolve  string
}

func makeProjectDirs(outputDir, project string) (projectDirs, error) {
	d := projectDirs{root: filepath.Join(outputDir, project)}
	d.clips = filepath.Join(d.root, "clips")
	d.metadata = filepath.Join(d.root, "metadata")
	d.resolve = filepath.Join(d.root, "resolve_project")
	for _, dir := range []string{d.clips, d.metadata, d.resolve} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return d, errors.Wrapf(err, "create %s", dir)
		}
	}
	return d, nil
}

// allTerminal reports whether every discovered video reached completed or
// failed, which lets the checkpoint be archived.
func allTerminal(cp *checkpoint.Checkpoint, videos []string) bool {
	for _, v := range videos {
		vs, ok := cp.Videos[v]
		if !ok {
			return false
		}
		if vs.Status != checkpoint.StatusCompleted && vs.Status != checkpoint.StatusFailed {
			return false
		}
	}
	return true
}

// newClipBar builds the per-video clip progress bar. Hidden when stderr
// is not a terminal so piped output stays clean.
func newClipBar(description string, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(term.IsTerminal(os.Stderr)),
	)
}
