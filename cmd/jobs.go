package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"pdfdesk/internal/config"
	fileutil "pdfdesk/internal/file"
	"pdfdesk/internal/pdf"
	"pdfdesk/internal/service"
	"pdfdesk/internal/task"
)

var errNoInput = errors.New("no input files")

func mergeAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	sources, err := readSources(cmd.Args().Slice())
	if err != nil {
		return err
	}
	return runJob(ctx, cfg, cmd.String("dir"), func(svc *service.Service) (string, error) {
		session, errs := svc.Loader().Stage(ctx, sources, cmd.IntSlice("separator"))
		if session.Len() == 0 {
			return "", errors.Join(append(errs, pdf.ErrNoDocuments)...)
		}
		mc := session.Config(cmd.String("out"))
		if cmd.IsSet("separate") {
			mc.CreateSeparateFiles = cmd.Bool("separate")
		}
		return svc.SubmitMerge(session.Items(), mc)
	})
}

func splitAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	src, err := singleSource(cmd)
	if err != nil {
		return err
	}
	return runJob(ctx, cfg, cmd.String("dir"), func(svc *service.Service) (string, error) {
		doc, err := svc.Loader().Load(ctx, src.Name, src.Data)
		if err != nil {
			return "", err
		}
		return svc.SubmitSplit(doc, task.SplitConfig{
			BaseFileName: cmd.String("base"),
			SplitPoints:  cmd.IntSlice("at"),
		})
	})
}

func renderAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	src, err := singleSource(cmd)
	if err != nil {
		return err
	}
	return runJob(ctx, cfg, cmd.String("dir"), func(svc *service.Service) (string, error) {
		return svc.SubmitRender(src.Name, src.Data, task.PdfToImageConfig{
			StartPage:    cmd.Int("from"),
			EndPage:      cmd.Int("to"),
			Quality:      task.ImageQuality(cmd.String("quality")),
			Format:       task.ImageFormat(cmd.String("format")),
			CreateFolder: cmd.Bool("folder"),
		})
	})
}

// runJob runs one task to completion and copies its outputs into dir.
func runJob(ctx context.Context, cfg config.Config, dir string, submit func(*service.Service) (string, error)) error {
	svc := service.New(service.Options{
		DataDir:            cfg.DataDir,
		MaxConcurrentTasks: 1,
		DownloadSpacing:    cfg.DownloadSpacing,
		// the task must still be readable after the job returns
		Scheduler: task.NewManualScheduler(),
	})
	defer svc.Close()
	svc.SetBaseContext(ctx)
	defer svc.Registry().Subscribe(logProgress)()

	id, err := submit(svc)
	if err != nil {
		return err
	}
	if !svc.WaitAll(ctx) {
		return ctx.Err()
	}
	t, ok := svc.Registry().GetTaskByID(id)
	if !ok {
		return task.ErrTaskNotFound
	}
	if t.Status != task.StatusCompleted {
		return fmt.Errorf("%s %s: %s", t.Type, t.Status, t.Error)
	}

	if err := fileutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("ensure output dir: %w", err)
	}
	for _, name := range t.Result {
		if err := copyOutput(svc, id, name, filepath.Join(dir, name)); err != nil {
			return err
		}
		log.Info().Str("file", filepath.Join(dir, name)).Msg("written")
	}
	return svc.RemoveOutputs(ctx, id)
}

func copyOutput(svc *service.Service, id, name, dest string) error {
	path, err := svc.Outputs().Path(id, name)
	if err != nil {
		return err
	}
	f, err := os.Open(path) //nolint:gosec // path comes from the output store
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()
	return fileutil.CopyAtomic(dest, f)
}

func logProgress(evt task.Event) {
	t := evt.Task
	switch {
	case evt.Kind == task.EventRemoved:
	case t.Status == task.StatusError:
		log.Error().Str("task_id", t.ID).Str("error", t.Error).Msg("task failed")
	default:
		log.Info().
			Str("task_id", t.ID).
			Str("status", string(t.Status)).
			Int("progress", t.Progress).
			Str("message", t.Message).
			Msg("progress")
	}
}

func readSources(paths []string) ([]pdf.Source, error) {
	if len(paths) == 0 {
		return nil, errNoInput
	}
	sources := make([]pdf.Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p) //nolint:gosec // user supplied input path
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		sources = append(sources, pdf.Source{Name: filepath.Base(p), Data: data})
	}
	return sources, nil
}

func singleSource(cmd *cli.Command) (pdf.Source, error) {
	if cmd.Args().Len() != 1 {
		return pdf.Source{}, fmt.Errorf("expected exactly one input file, got %d", cmd.Args().Len())
	}
	sources, err := readSources(cmd.Args().Slice())
	if err != nil {
		return pdf.Source{}, err
	}
	return sources[0], nil
}
