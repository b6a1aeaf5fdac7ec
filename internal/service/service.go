// Package service wires loading, conversion and delivery into tracked tasks.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"pdfdesk/internal/dispatch"
	"pdfdesk/internal/pdf"
	"pdfdesk/internal/render"
	"pdfdesk/internal/task"
)

type Options struct {
	DataDir            string
	MaxConcurrentTasks int
	EvictAfter         time.Duration
	DownloadSpacing    time.Duration
	// Scheduler overrides the eviction timer source, mainly for tests.
	Scheduler task.Scheduler
}

// Service owns the task registry and runs conversions against it.
type Service struct {
	registry   *task.Registry
	runner     *task.Runner
	dispatcher *dispatch.Dispatcher
	loader     *pdf.Loader
	merger     *pdf.Merger
	splitter   *pdf.Splitter
	renderer   *render.Renderer
}

func New(opts Options) *Service {
	registry := task.NewRegistryWithOptions(task.Options{
		EvictAfter: opts.EvictAfter,
		Scheduler:  opts.Scheduler,
	})
	composer := pdf.NewPDFCPU()
	s := &Service{
		registry:   registry,
		dispatcher: dispatch.New(dispatch.NewFileStore(opts.DataDir), dispatch.Options{Spacing: opts.DownloadSpacing}),
		loader:     pdf.NewLoader(),
		merger:     pdf.NewMerger(composer),
		splitter:   pdf.NewSplitter(composer),
		renderer:   render.NewRenderer(),
	}
	s.runner = task.NewRunner(registry, task.RunnerOptions{
		MaxConcurrentTasks: opts.MaxConcurrentTasks,
		OnDiscard:          s.dropOutputs,
	})
	return s
}

// dropOutputs deletes files delivered for a task that was cancelled before
// it could complete.
func (s *Service) dropOutputs(taskID string, _ []string) {
	if err := s.dispatcher.Store().Remove(context.Background(), taskID); err != nil {
		log.Warn().Str("task_id", taskID).Err(err).Msg("removing discarded outputs failed")
	}
}

func (s *Service) Registry() *task.Registry { return s.registry }
func (s *Service) Loader() *pdf.Loader      { return s.loader }
func (s *Service) Renderer() *render.Renderer {
	return s.renderer
}
func (s *Service) Outputs() dispatch.Store { return s.dispatcher.Store() }

// IsBusy reports whether every processing slot is taken.
func (s *Service) IsBusy() bool { return s.runner.IsBusy() }

// SetBaseContext sets the context every job derives from.
func (s *Service) SetBaseContext(ctx context.Context) { s.runner.SetBaseContext(ctx) }

// WaitAll blocks until running jobs finish or ctx is done.
func (s *Service) WaitAll(ctx context.Context) bool { return s.runner.WaitAll(ctx) }

func (s *Service) Close() { s.runner.Close() }

// SubmitMerge merges docs in the background. Outputs are delivered one
// after another.
func (s *Service) SubmitMerge(docs []*pdf.MergeablePdf, cfg task.MergeConfig) (string, error) {
	if len(docs) == 0 {
		return "", pdf.ErrNoDocuments
	}
	if cfg.OutputFileName == "" {
		cfg.OutputFileName = pdf.DefaultMergeName
	}
	cfg.SeparatorIndices = append([]int(nil), cfg.SeparatorIndices...)
	docs = append([]*pdf.MergeablePdf(nil), docs...)

	return s.submit(task.NewTask{
		Type:       task.TypePdfMerge,
		Filename:   cfg.OutputFileName + ".pdf",
		TotalFiles: len(docs),
		Config:     cfg,
	}, func(ctx context.Context, progress *task.Bridge) ([]string, error) {
		outputs, err := s.merger.Merge(ctx, progress.TaskID(), docs, cfg, progress)
		if err != nil {
			return nil, err
		}
		return s.dispatcher.Dispatch(ctx, dispatch.Request{
			TaskID:   progress.TaskID(),
			Strategy: dispatch.Sequenced,
			Outputs:  outputs,
		})
	})
}

// SubmitSplit splits doc in the background. Several parts are delivered as
// one {base}.zip.
func (s *Service) SubmitSplit(doc *pdf.Document, cfg task.SplitConfig) (string, error) {
	if doc == nil {
		return "", pdf.ErrNotLoaded
	}
	if cfg.BaseFileName == "" {
		cfg.BaseFileName = pdf.Stem(doc.Name)
	}
	cfg.SplitPoints = append([]int(nil), cfg.SplitPoints...)

	return s.submit(task.NewTask{
		Type:     task.TypePdfSplit,
		Filename: doc.Name,
		Config:   cfg,
	}, func(ctx context.Context, progress *task.Bridge) ([]string, error) {
		outputs, err := s.splitter.Split(ctx, progress.TaskID(), doc, cfg, progress)
		if err != nil {
			return nil, err
		}
		return s.dispatcher.Dispatch(ctx, dispatch.Request{
			TaskID:     progress.TaskID(),
			Strategy:   bundleIfMany(len(outputs)),
			BundleName: cfg.BaseFileName + ".zip",
			Outputs:    outputs,
		})
	})
}

// SubmitRender converts pages of a PDF to images in the background. With
// CreateFolder the images are delivered as {stem}_img.zip.
func (s *Service) SubmitRender(name string, data []byte, cfg task.PdfToImageConfig) (string, error) {
	if cfg.Format == "" {
		cfg.Format = task.FormatPNG
	}
	if cfg.Quality == "" {
		cfg.Quality = task.QualityMedium
	}
	if cfg.Format != task.FormatPNG && cfg.Format != task.FormatJPG {
		return "", fmt.Errorf("%w: %s", render.ErrUnsupportedFormat, cfg.Format)
	}

	return s.submit(task.NewTask{
		Type:     task.TypePdfToImage,
		Filename: name,
		Config:   cfg,
	}, func(ctx context.Context, progress *task.Bridge) ([]string, error) {
		outputs, err := s.renderer.Render(ctx, progress.TaskID(), name, data, cfg, progress)
		if err != nil {
			return nil, err
		}
		req := dispatch.Request{TaskID: progress.TaskID(), Strategy: dispatch.Sequenced, Outputs: outputs}
		if cfg.CreateFolder {
			folder := render.FolderName(pdf.Stem(name))
			req.Strategy = dispatch.Bundled
			req.BundleName = folder + ".zip"
			req.Folder = folder
		}
		return s.dispatcher.Dispatch(ctx, req)
	})
}

// RemoveOutputs deletes the delivered files of a task.
func (s *Service) RemoveOutputs(ctx context.Context, taskID string) error {
	return s.dispatcher.Store().Remove(ctx, taskID)
}

func (s *Service) submit(nt task.NewTask, job task.Job) (string, error) {
	id, err := s.registry.AddTask(nt)
	if err != nil {
		return "", err
	}
	if err := s.runner.Submit(id, job); err != nil {
		s.registry.RemoveTask(id)
		return "", err
	}
	log.Info().Str("task_id", id).Str("type", string(nt.Type)).Str("filename", nt.Filename).Msg("task submitted")
	return id, nil
}

func bundleIfMany(n int) dispatch.Strategy {
	if n > 1 {
		return dispatch.Bundled
	}
	return dispatch.Sequenced
}
