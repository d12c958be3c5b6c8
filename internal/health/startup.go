// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ManuGH/crazifier/internal/config"
	"github.com/ManuGH/crazifier/internal/log"
)

// PerformStartupChecks prepares the directories the daemon writes to and
// fails fast when they are unusable. The backend is not required to be up.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	return performStartupChecks(ctx, afero.NewOsFs(), cfg)
}

func performStartupChecks(ctx context.Context, fs afero.Fs, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	dirs := map[string]string{"downloads": cfg.Downloads.Dir}
	if cfg.Journal.Path != "" {
		dirs["journal"] = filepath.Dir(cfg.Journal.Path)
	}
	for name, dir := range dirs {
		if err := fs.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("%s directory %s: %w", name, dir, err)
		}
		res := NewDirCheckerFs(name, dir, fs).Check(ctx)
		if res.Status == StatusUnhealthy {
			return fmt.Errorf("%s directory %s: %s", name, dir, res.Error)
		}
		logger.Info().Str("path", dir).Str("dir", name).Msg("directory is writable")
	}
	return nil
}
