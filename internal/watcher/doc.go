// Package watcher notices when a store directory is changed by something other
// than this process, such as a backup restore or a second docindex writer, and
// drops the in-memory cache so the next call reloads from disk.
//
// fsnotify is used where available. On filesystems where it cannot be set up
// the watcher falls back to polling the store's file fingerprint.
//
//	w, err := watcher.NewRestoreWatcher(dir, engine, watcher.Options{}, logger)
//	if err != nil {
//	    return err
//	}
//	go w.Run(ctx)
package watcher
