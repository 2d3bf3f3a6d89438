// Package watcher reports file system changes below a watch root as
// debounced batches of absolute-path events.
//
// The package implements a hybrid watching strategy:
//   - Primary: fsnotify for efficient event-based watching
//   - Fallback: Polling for environments where fsnotify fails (network mounts, Docker volumes)
//
// Directories created while watching are added to the watch and their
// existing contents are reported as creations. Deletions of directories the
// watcher knew about carry IsDir. When notifications are lost, an
// ERR_301_NOTIFICATION_OVERFLOW error is sent on Errors so the consumer can
// resynchronize.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx, "/home/me/Dropbox") }()
//
//	for batch := range w.Events() {
//	    for _, event := range batch {
//	        // event.Path is absolute
//	    }
//	}
package watcher
