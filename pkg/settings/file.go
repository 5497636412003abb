package settings

import (
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile merges a YAML file into the settings tree.
func (s *Settings) LoadFile(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.WithMessagef(err, "read settings file %s", path)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(buf, &tree); err != nil {
		return errors.WithMessagef(err, "parse settings file %s", path)
	}

	s.Merge(normalizeYAML(tree))
	return nil
}

// Watch reloads the file into the settings whenever it changes. onReload is
// invoked after each attempt with the reload error, if any. The returned
// stop function ends the watch.
func (s *Settings) Watch(path string, onReload func(error)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithMessage(err, "create settings watcher")
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, errors.WithMessagef(err, "watch settings file %s", path)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				err := s.LoadFile(path)
				if onReload != nil {
					onReload(err)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}

// normalizeYAML rewrites yaml.v3's map[any]any nodes (possible with
// non-string keys) into the string-keyed shape Settings uses.
func normalizeYAML(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = normalizeYAMLValue(val)
	}
	return out
}

func normalizeYAMLValue(v any) any {
	switch node := v.(type) {
	case map[string]any:
		return normalizeYAML(node)
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			if key, ok := k.(string); ok {
				out[key] = normalizeYAMLValue(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, item := range node {
			out[i] = normalizeYAMLValue(item)
		}
		return out
	}
	return v
}
