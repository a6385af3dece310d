package supervisor

import (
	"fmt"
	"os"
	"path/filepath"

	"relaywatch/internal/relaypaths"
)

func pid() int { return os.Getpid() }

func heartbeatPath(layout *relaypaths.Layout) string {
	return filepath.Join(layout.Queue, "watcher.heartbeat")
}

func heartbeatStatus(activeProjects int) string {
	return fmt.Sprintf("Processing %d project(s)", activeProjects)
}
