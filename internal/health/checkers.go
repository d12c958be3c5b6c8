// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/spf13/afero"
)

// BackendChecker reports whether the crazifier backend answers HTTP at
// all. Any response counts: the backend has no health endpoint and its
// root may well be a 404.
type BackendChecker struct {
	baseURL string
	client  *http.Client
}

// NewBackendChecker checks baseURL with client, or http.DefaultClient.
func NewBackendChecker(baseURL string, client *http.Client) *BackendChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &BackendChecker{baseURL: baseURL, client: client}
}

func (c *BackendChecker) Name() string {
	return "backend"
}

func (c *BackendChecker) Check(ctx context.Context) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: "backend unreachable"}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("backend answered HTTP %d", resp.StatusCode)}
	}
	return CheckResult{Status: StatusHealthy, Message: "backend reachable"}
}

// DirChecker verifies a directory exists and accepts writes.
type DirChecker struct {
	name string
	dir  string
	fs   afero.Fs
}

// NewDirChecker checks dir on the OS filesystem.
func NewDirChecker(name, dir string) *DirChecker {
	return NewDirCheckerFs(name, dir, afero.NewOsFs())
}

// NewDirCheckerFs checks dir on fs.
func NewDirCheckerFs(name, dir string, fs afero.Fs) *DirChecker {
	return &DirChecker{name: name, dir: dir, fs: fs}
}

func (c *DirChecker) Name() string {
	return c.name
}

func (c *DirChecker) Check(_ context.Context) CheckResult {
	if c.dir == "" {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	info, err := c.fs.Stat(c.dir)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.dir}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file", Message: c.dir}
	}
	probe := filepath.Join(c.dir, ".write_test")
	if err := afero.WriteFile(c.fs, probe, []byte("ok"), 0o600); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: "directory is not writable"}
	}
	_ = c.fs.Remove(probe)
	return CheckResult{Status: StatusHealthy, Message: "directory writable"}
}

// FuncChecker adapts a function; a non-nil error is unhealthy.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) error
}

// NewFuncChecker wraps fn under name.
func NewFuncChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string {
	return c.name
}

func (c *FuncChecker) Check(ctx context.Context) CheckResult {
	if err := c.fn(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
