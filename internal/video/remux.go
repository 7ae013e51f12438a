package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/banshee-data/viddup/internal/monitoring"
)

// Remux rewrites the container of path in place by stream-copying it into a
// fresh Matroska file. Used to repair broken duration metadata; the codec
// data is untouched.
func Remux(ctx context.Context, path string) error {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	tmp := path + ".remux.mkv"
	monitoring.Infof("remuxing %s", path)

	cmd := exec.CommandContext(ctx, ffmpeg,
		"-v", "error",
		"-y",
		"-i", path,
		"-map", "0",
		"-c", "copy",
		tmp,
	)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: remux %s: %v", ErrSourceUnreadable, path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s with remuxed copy: %w", path, err)
	}
	return nil
}
