package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"geoagent/logging"
)

// settleDelay gives the writer time to finish the file before we read it.
const settleDelay = 500 * time.Millisecond

// Watch processes image files as they appear in the folder. It blocks until
// the context is cancelled or the watcher fails.
func (in *Ingestor) Watch(ctx context.Context, folderPath string) error {
	info, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("cannot access folder: %v", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create watcher: %v", err)
	}
	defer watcher.Close()

	if err := watcher.Add(folderPath); err != nil {
		return fmt.Errorf("cannot watch %s: %v", folderPath, err)
	}

	logging.LogInfo("watching %s for new images", folderPath)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !IsImageFile(event.Name) {
				continue
			}

			time.Sleep(settleDelay)
			if _, err := os.Stat(event.Name); err != nil {
				continue // Renamed away or already gone
			}

			res := in.processFile(ctx, event.Name)
			switch {
			case res.Err != nil:
				logging.LogImageProcessed(res.Path, false, res.Err.Error())
			case res.Skipped:
				logging.DebugLog("no GPS metadata, skipping: %s", res.Path)
			default:
				logging.LogImageProcessed(res.Path, true, "")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.LogWarning("watcher error: %v", err)
		}
	}
}
