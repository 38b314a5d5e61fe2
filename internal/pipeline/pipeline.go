// Package pipeline executes one scan job end to end: claim, fetch,
// detect, scan, classify, persist.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CZERTAINLY/Prospector/internal/cbom"
	"github.com/CZERTAINLY/Prospector/internal/classify"
	"github.com/CZERTAINLY/Prospector/internal/cmdexec"
	"github.com/CZERTAINLY/Prospector/internal/fetch"
	"github.com/CZERTAINLY/Prospector/internal/lang"
	"github.com/CZERTAINLY/Prospector/internal/model"
	"github.com/CZERTAINLY/Prospector/internal/semgrep"
	"github.com/CZERTAINLY/Prospector/internal/workspace"

	"github.com/google/uuid"
)

// Store is the slice of the job store the pipeline needs.
type Store interface {
	ClaimQueued(ctx context.Context, id uuid.UUID) (model.Job, bool, error)
	Complete(ctx context.Context, id uuid.UUID, outcome model.Outcome) error
	Fail(ctx context.Context, id uuid.UUID, outcome model.Outcome, reason string) error
}

// Scanner describes the external scanner invocation. The command is
// called as: <command> <workspace> <config> <language>.
type Scanner struct {
	Command string
	Timeout time.Duration
}

type Pipeline struct {
	Jobs       Store
	Workspaces workspace.Manager
	Fetcher    fetch.Fetcher
	Detector   lang.Detector
	Scanner    Scanner
	JobTimeout time.Duration
	Run        cmdexec.RunFunc
}

func New(jobs Store, workspaces workspace.Manager, fetcher fetch.Fetcher, detector lang.Detector, scanner Scanner, jobTimeout time.Duration) *Pipeline {
	return &Pipeline{
		Jobs:       jobs,
		Workspaces: workspaces,
		Fetcher:    fetcher,
		Detector:   detector,
		Scanner:    scanner,
		JobTimeout: jobTimeout,
		Run:        cmdexec.Run,
	}
}

// Process claims the job and runs it to a terminal state. A lost claim
// is not an error, another worker owns the job. The returned error
// reflects the run itself; the terminal state is persisted either way,
// detached from ctx so that the very cancellation which killed the run
// cannot also suppress recording it.
func (p *Pipeline) Process(ctx context.Context, id uuid.UUID) error {
	job, ok, err := p.Jobs.ClaimQueued(ctx, id)
	if err != nil {
		return fmt.Errorf("claiming job %s: %w", id, err)
	}
	if !ok {
		slog.DebugContext(ctx, "job not claimable, skipping", "job", id)
		return nil
	}
	slog.InfoContext(ctx, "job claimed", "job", id, "repo", job.RepoURL, "ref", job.Ref, "tool", job.Tool)

	runCtx := ctx
	if p.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.JobTimeout)
		defer cancel()
	}

	outcome, runErr := p.execute(runCtx, job)

	finalCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		slog.ErrorContext(ctx, "job failed", "job", id, "error", runErr)
		if err := p.Jobs.Fail(finalCtx, id, outcome, runErr.Error()); err != nil {
			return fmt.Errorf("recording failure of job %s: %w", id, err)
		}
		return runErr
	}

	if err := p.Jobs.Complete(finalCtx, id, outcome); err != nil {
		return fmt.Errorf("recording completion of job %s: %w", id, err)
	}
	slog.InfoContext(ctx, "job completed", "job", id, "score", deref(outcome.Score))
	return nil
}

func (p *Pipeline) execute(ctx context.Context, job model.Job) (model.Outcome, error) {
	var outcome model.Outcome

	dir, err := p.Workspaces.Acquire(job.ID)
	if err != nil {
		return outcome, err
	}
	defer func() {
		if err := p.Workspaces.Release(dir); err != nil {
			slog.Error("releasing workspace", "job", job.ID, "dir", dir, "error", err)
		}
	}()

	if err := p.Fetcher.Fetch(ctx, job.RepoURL, job.Ref, dir); err != nil {
		return outcome, err
	}

	language := p.Detector.Detect(ctx, dir)
	outcome.DetectedLanguage = &language
	configPath := p.Detector.ConfigPath(language)
	slog.DebugContext(ctx, "language detected", "job", job.ID, "language", language, "config", configPath)

	raw, err := p.Run(ctx, cmdexec.Command{
		Path:    p.Scanner.Command,
		Args:    []string{dir, configPath, language},
		Timeout: p.Scanner.Timeout,
	})
	if err != nil {
		return outcome, fmt.Errorf("running scanner: %w", err)
	}

	findings, err := semgrep.Parse(raw)
	if err != nil {
		return outcome, &model.ClassificationError{Err: err}
	}

	if job.Tool.KeepsFindings() {
		outcome.RawFindings = &raw
	}

	score := cbom.Score(len(findings))
	outcome.Score = &score

	if job.Tool.KeepsInventory() {
		doc, err := p.inventory(job, configPath, findings)
		if err != nil {
			return outcome, err
		}
		outcome.InventoryDocument = &doc
	}
	return outcome, nil
}

// inventory classifies the findings and renders the CycloneDX document.
// The document is validated before it leaves the pipeline.
func (p *Pipeline) inventory(job model.Job, configPath string, findings []model.Finding) (string, error) {
	builder := cbom.NewBuilder(job.RepoURL, job.Ref, configPath)
	for _, f := range findings {
		builder.AppendAssets(classify.Classify(f))
	}

	var buf bytes.Buffer
	if err := builder.AsJSON(&buf); err != nil {
		return "", fmt.Errorf("encoding inventory document: %w", err)
	}
	if err := cbom.Validate(buf.String()); err != nil {
		return "", fmt.Errorf("validating inventory document: %w", err)
	}
	return buf.String(), nil
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
