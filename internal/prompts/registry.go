// Package prompts renders the named templates the controllers send to the
// model. Defaults are embedded; files in an override directory replace them.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/ChamsBouzaiene/asimov/internal/logger"
)

//go:embed templates/*.tmpl
var embedded embed.FS

const ext = ".tmpl"

// Engine holds the parsed templates. It is safe for concurrent use and
// satisfies engine.PromptRenderer.
type Engine struct {
	mu        sync.RWMutex
	defaults  map[string]*Prompt
	overrides map[string]*Prompt
	dir       string
	log       logger.Logger
}

// NewEngine parses the embedded templates and, when dir is set, the
// override templates in it.
func NewEngine(dir string) (*Engine, error) {
	e := &Engine{
		defaults:  make(map[string]*Prompt),
		overrides: make(map[string]*Prompt),
		dir:       dir,
		log:       logger.GetDefault(),
	}

	entries, err := fs.ReadDir(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("read embedded templates: %w", err)
	}
	for _, entry := range entries {
		data, err := embedded.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		p, err := parse(name, string(data))
		if err != nil {
			return nil, err
		}
		p.Source = SourceEmbedded
		e.defaults[name] = p
	}

	if dir != "" {
		if err := e.Reload(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// MustNewEngine is NewEngine without an override directory. It panics only
// if the embedded templates are broken.
func MustNewEngine() *Engine {
	e, err := NewEngine("")
	if err != nil {
		panic(err)
	}
	return e
}

// Dir returns the override directory, or "" when there is none.
func (e *Engine) Dir() string { return e.dir }

func parse(name, text string) (*Prompt, error) {
	tmpl, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=zero").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", name, err)
	}
	return &Prompt{Name: name, tmpl: tmpl}, nil
}

// Reload re-reads the override directory. A missing directory means no
// overrides. On a parse error the previous overrides stay in place.
func (e *Engine) Reload() error {
	if e.dir == "" {
		return nil
	}
	overrides := make(map[string]*Prompt)
	entries, err := os.ReadDir(e.dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read prompt dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		path := filepath.Join(e.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read prompt %s: %w", path, err)
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		p, err := parse(name, string(data))
		if err != nil {
			return err
		}
		p.Source = SourceOverride
		p.Path = path
		overrides[name] = p
	}

	e.mu.Lock()
	e.overrides = overrides
	e.mu.Unlock()
	return nil
}

// Get returns the effective template for name.
func (e *Engine) Get(name string) (*Prompt, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if p, ok := e.overrides[name]; ok {
		return p, nil
	}
	if p, ok := e.defaults[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("prompt not found: %s", name)
}

// Names lists every template name, embedded or overridden, sorted.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	seen := make(map[string]struct{}, len(e.defaults)+len(e.overrides))
	for name := range e.defaults {
		seen[name] = struct{}{}
	}
	for name := range e.overrides {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render executes the named template with vars.
func (e *Engine) Render(name string, vars map[string]any) (string, error) {
	p, err := e.Get(name)
	if err != nil {
		return "", err
	}

	data := make(map[string]any, len(vars)+len(knownVars))
	for _, k := range knownVars {
		data[k] = ""
	}
	for k, v := range vars {
		data[k] = v
	}

	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
