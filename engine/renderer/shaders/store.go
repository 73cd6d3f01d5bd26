package shaders

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-webgpu/engine/core"
)

const sourceExt = ".wgsl"

var ErrStoreClosed = errors.New("shader store already closed")

// Store reads WGSL programs from a directory, one file per program named
// <program>.wgsl, and optionally watches it for changes. Change
// notifications are collected on the watcher goroutine and fired on the
// event bus by Dispatch, which the render loop calls once per frame.
type Store struct {
	dir string

	mutex   sync.Mutex
	sources map[string]string
	pending map[string]struct{}

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	isClosed bool
}

func NewStore(dir string) (*Store, error) {
	s := &Store{
		dir:     dir,
		sources: make(map[string]string),
		pending: make(map[string]struct{}),
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadAll() error {
	return filepath.Walk(s.dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || filepath.Ext(path) != sourceExt {
			return nil
		}
		_, err = s.load(path)
		return err
	})
}

func programName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), sourceExt)
}

func (s *Store) load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	name := programName(path)
	s.mutex.Lock()
	s.sources[name] = string(data)
	s.mutex.Unlock()
	return name, nil
}

// Source returns the current text of a program.
func (s *Store) Source(name string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	src, ok := s.sources[name]
	if !ok {
		return "", fmt.Errorf("shader %s not found in %s", name, s.dir)
	}
	return src, nil
}

// Names lists the known programs.
func (s *Store) Names() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]string, 0, len(s.sources))
	for n := range s.sources {
		out = append(out, n)
	}
	return out
}

// Watch starts watching the directory tree. Calling it again while the
// store is already watching does nothing.
func (s *Store) Watch() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.isClosed {
		return ErrStoreClosed
	}
	if s.fsnotify != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watchRecursive(w, s.dir); err != nil {
		w.Close()
		return err
	}
	s.fsnotify = w
	s.done = make(chan struct{})
	go s.start(w, s.done)
	return nil
}

func watchRecursive(w *fsnotify.Watcher, path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return w.Add(walkPath)
		}
		return nil
	})
}

func (s *Store) start(w *fsnotify.Watcher, done <-chan struct{}) {
	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := watchRecursive(w, e.Name); err != nil {
						core.LogWarn("shader store: cannot watch %s: %s", e.Name, err)
					}
				}
				continue
			}
			if filepath.Ext(e.Name) != sourceExt {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				name, err := s.load(e.Name)
				if err != nil {
					core.LogWarn("shader store: cannot read %s: %s", e.Name, err)
					continue
				}
				s.mutex.Lock()
				s.pending[name] = struct{}{}
				s.mutex.Unlock()
			}
			if e.Op&fsnotify.Remove != 0 {
				s.mutex.Lock()
				delete(s.sources, programName(e.Name))
				s.mutex.Unlock()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			core.LogError("%s", err)

		case <-done:
			return
		}
	}
}

// Dispatch fires EventCodeShaderReloaded on bus for every program changed
// since the last call and returns their names.
func (s *Store) Dispatch(bus *core.EventBus) []string {
	s.mutex.Lock()
	names := make([]string, 0, len(s.pending))
	for n := range s.pending {
		names = append(names, n)
	}
	s.pending = make(map[string]struct{})
	s.mutex.Unlock()

	for _, n := range names {
		ctx := core.EventContext{}
		ctx.Data.C[0] = n
		core.LogInfo("shader %s changed on disk", n)
		bus.Fire(core.EventCodeShaderReloaded, s, ctx)
	}
	return names
}

func (s *Store) Close() error {
	s.mutex.Lock()
	if s.isClosed {
		s.mutex.Unlock()
		return nil
	}
	s.isClosed = true
	w, done := s.fsnotify, s.done
	s.mutex.Unlock()

	if w == nil {
		return nil
	}
	close(done)
	return w.Close()
}
