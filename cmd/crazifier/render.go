// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/ManuGH/crazifier/internal/config"
	"github.com/ManuGH/crazifier/internal/download"
	"github.com/ManuGH/crazifier/internal/media"
	"github.com/ManuGH/crazifier/internal/session"
)

type renderFlags struct {
	config   string
	file     string
	duration float64
	level    int
	out      string
}

func parseRenderFlags(name string, args []string, stderr io.Writer, withOut bool) (renderFlags, bool) {
	var rf renderFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&rf.config, "config", "", "path to config file (YAML)")
	fs.StringVar(&rf.file, "file", "", "audio file to crazify (mp3, wav, aiff)")
	fs.Float64Var(&rf.duration, "duration", 0, "render duration in seconds (default: the file's duration)")
	fs.IntVar(&rf.level, "level", 0, "crazify level 1-10 (default from config)")
	if withOut {
		fs.StringVar(&rf.out, "out", "", "output file name; the extension selects the format")
	}
	if err := fs.Parse(args); err != nil {
		return rf, false
	}
	if rf.file == "" {
		fmt.Fprintln(stderr, "-file is required")
		fs.Usage()
		return rf, false
	}
	return rf, true
}

// prepare selects the file and applies the flags. It prints the probe
// failure and returns false when the file cannot be rendered.
func prepare(ctx context.Context, rt *appRuntime, rf renderFlags, stdout, stderr io.Writer) bool {
	f, err := media.Open(afero.NewOsFs(), rf.file, rt.cfg.Session.MaxUploadBytes)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return false
	}

	snap, err := rt.ctrl.SelectFile(ctx, f)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return false
	}
	if snap.Status != session.StatusReady {
		fmt.Fprintln(stderr, snap.LastError)
		return false
	}
	fmt.Fprintf(stdout, "%s: %.3f s\n", snap.File.Label, snap.ProbedDuration)

	if rf.duration > 0 {
		p := rt.ctrl.ProposeDuration(rf.duration)
		if !p.Valid {
			fmt.Fprintf(stderr, "duration %.3f s out of range, using %.3f s\n", rf.duration, p.Sanitized)
		}
		if _, _, err := rt.ctrl.CommitDuration(p); err != nil {
			fmt.Fprintln(stderr, err)
			return false
		}
	}
	if rf.level > 0 {
		if _, err := rt.ctrl.SetIntensity(rf.level); err != nil {
			fmt.Fprintf(stderr, "level %d: %v\n", rf.level, err)
			return false
		}
	}
	if rf.out != "" {
		if _, err := rt.ctrl.SetOutputName(rf.out); err != nil {
			fmt.Fprintln(stderr, err)
			return false
		}
	}
	return true
}

func runPlay(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rf, ok := parseRenderFlags("play", args, stderr, false)
	if !ok {
		return 2
	}
	rt, err := bootstrap(ctx, rf.config, nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer rt.close()

	if !prepare(ctx, rt, rf, stdout, stderr) {
		return 1
	}

	if err := rt.ctrl.Play(ctx); err != nil {
		fmt.Fprintln(stderr, renderFailure(err))
		return 1
	}
	snap := rt.ctrl.Snapshot()
	fmt.Fprintf(stdout, "playing %.3f s at level %d\n", snap.RenderDuration, snap.Intensity)

	// The first update is the current snapshot, so an auto-stop that
	// already happened is not missed.
	updates, cancel := rt.ctrl.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			// Interrupted: close sends the backend stop.
			fmt.Fprintln(stdout, "stopping")
			return 130
		case s, open := <-updates:
			if !open || s.Status != session.StatusRendering {
				fmt.Fprintln(stdout, "done")
				return 0
			}
		}
	}
}

func runSave(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rf, ok := parseRenderFlags("save", args, stderr, true)
	if !ok {
		return 2
	}
	rt, err := bootstrap(ctx, rf.config, func(cfg config.AppConfig) []session.Option {
		return []session.Option{session.WithSink(download.NewDirSink(cfg.Downloads.Dir))}
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer rt.close()

	if !prepare(ctx, rt, rf, stdout, stderr) {
		return 1
	}

	dl, err := rt.ctrl.Save(ctx)
	if err != nil {
		fmt.Fprintln(stderr, renderFailure(err))
		return 1
	}
	fmt.Fprintf(stdout, "saved %s (%d bytes)\n", dl.Location, len(dl.Data))
	return 0
}

func renderFailure(err error) string {
	var rerr *session.RenderError
	if errors.As(err, &rerr) {
		return rerr.Message
	}
	return err.Error()
}
