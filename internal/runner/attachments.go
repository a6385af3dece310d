package runner

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"relaywatch/internal/queue"
)

// saveImages decodes a job's base64-attached images to the temp
// directory and returns their file paths, grounded on the source
// watcher's save_images.
func saveImages(tempDir, jobID string, images []queue.Image) []string {
	var paths []string
	for i, img := range images {
		if img.Data == "" {
			continue
		}
		data := img.Data
		if idx := strings.IndexByte(data, ','); idx >= 0 {
			data = data[idx+1:]
		}
		ext := extensionFor(img.Type)
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			continue
		}
		imgPath := filepath.Join(tempDir, fmt.Sprintf("%s_img%d.%s", jobID, i, ext))
		if err := os.WriteFile(imgPath, decoded, 0o644); err != nil {
			continue
		}
		paths = append(paths, imgPath)
	}
	return paths
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "jpeg"), strings.Contains(mimeType, "jpg"):
		return "jpg"
	case strings.Contains(mimeType, "gif"):
		return "gif"
	case strings.Contains(mimeType, "webp"):
		return "webp"
	default:
		return "png"
	}
}

// cleanupImages removes every temp image belonging to jobID.
func cleanupImages(tempDir, jobID string) {
	matches, err := filepath.Glob(filepath.Join(tempDir, jobID+"_img*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		_ = os.Remove(m)
	}
}
