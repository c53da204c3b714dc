// Package replay loads recorded email threads so they can be run through
// the tracker again.
package replay

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/freight-triage/internal/pipeline"
)

var fixtureExts = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// LoadFile reads the threads in a fixture file. A file may hold one thread,
// a list of threads, or several YAML documents. JSON is read as YAML.
func LoadFile(path string) ([]pipeline.ThreadTurns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "replay: read fixture %s", path)
	}
	threads, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "replay: parse fixture %s", path)
	}
	return threads, nil
}

// Parse decodes fixture content.
func Parse(data []byte) ([]pipeline.ThreadTurns, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var threads []pipeline.ThreadTurns
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "replay: decode")
		}
		if len(doc.Content) == 0 {
			continue
		}

		root := doc.Content[0]
		switch root.Kind {
		case yaml.SequenceNode:
			var many []pipeline.ThreadTurns
			if err := root.Decode(&many); err != nil {
				return nil, eris.Wrap(err, "replay: decode thread list")
			}
			threads = append(threads, many...)
		case yaml.MappingNode:
			var one pipeline.ThreadTurns
			if err := root.Decode(&one); err != nil {
				return nil, eris.Wrap(err, "replay: decode thread")
			}
			threads = append(threads, one)
		default:
			return nil, eris.Errorf("replay: line %d: expected a thread or a list of threads", root.Line)
		}
	}

	for i, th := range threads {
		if strings.TrimSpace(th.ThreadID) == "" {
			return nil, eris.Errorf("replay: thread %d has no thread_id", i)
		}
	}
	return threads, nil
}

// LoadPaths loads every fixture named by paths. Directories are walked
// for .yaml, .yml and .json files in lexical order. Thread IDs must be
// unique across all files.
func LoadPaths(paths []string) ([]pipeline.ThreadTurns, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, eris.Wrapf(err, "replay: stat %s", p)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && fixtureExts[strings.ToLower(filepath.Ext(path))] {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "replay: walk %s", p)
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	seen := make(map[string]string)
	var threads []pipeline.ThreadTurns
	for _, f := range files {
		loaded, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		for _, th := range loaded {
			if prev, dup := seen[th.ThreadID]; dup {
				return nil, eris.Errorf("replay: thread %s defined in both %s and %s", th.ThreadID, prev, f)
			}
			seen[th.ThreadID] = f
		}
		threads = append(threads, loaded...)
	}
	return threads, nil
}
