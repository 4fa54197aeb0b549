package retrieval

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchVocabulary reloads the vocabulary file whenever it changes and hands
// the new table to apply. It watches the parent directory so editors that
// replace the file by rename are picked up. Blocks until ctx is done.
func WatchVocabulary(ctx context.Context, path string, apply func(*Vocabulary)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create vocabulary watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve vocabulary path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			v, err := LoadVocabulary(abs)
			if err != nil {
				log.Printf("Vocabulary: reload of %s failed, keeping previous table: %v", abs, err)
				continue
			}
			apply(v)
			log.Printf("Vocabulary: reloaded %s (%d synonym entries)", abs, len(v.Synonyms))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Vocabulary: watcher error: %v", err)
		}
	}
}
