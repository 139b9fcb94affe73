package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/benz9527/bidtree/lib/infra"
)

// Watcher reloads the config file on every write. The directory is watched
// instead of the file, because the editors replace the file by a rename.
type Watcher struct {
	path      string
	watcher   *fsnotify.Watcher
	onChange  func(*Config)
	onError   func(error)
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func Watch(ctx context.Context, path string, onChange func(*Config), onError func(error)) (*Watcher, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return nil, infra.WrapErrorStack(err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "failed to create config watcher")
	}
	if err = watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, infra.WrapErrorStackWithMessage(err, "failed to add config directory to watcher")
	}
	if onError == nil {
		onError = func(error) {}
	}
	w := &Watcher{
		path:     abs,
		watcher:  watcher,
		onChange: onChange,
		onError:  onError,
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.watchAndReload()
	return w, nil
}

func (w *Watcher) watchAndReload() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := NewConfigFromFile(w.path)
			if err != nil {
				// Keep the last good config, a half written file fails here.
				w.onError(err)
				continue
			}
			if w.onChange != nil {
				w.onChange(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) Close() (err error) {
	w.closeOnce.Do(func() {
		w.cancel()
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}
