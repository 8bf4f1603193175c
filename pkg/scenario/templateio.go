package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk shape of a template directory's
// <template_id>.yaml metadata file. The matching rules live in a sibling
// <template_id>.csv.
type templateFile struct {
	TemplateID string `yaml:"template_id"`
	Name       string `yaml:"name"`
	HazardType string `yaml:"hazard_type"`
	Version    int    `yaml:"version"`
	IsActive   bool   `yaml:"is_active"`
}

// LoadTemplateDir imports the <id>.csv of every <id>.yaml in dir into sink
// through ImportRulesCSV, stopping at the first pair that fails. Template
// rows come from the CSV's template columns; the YAML file is read only for
// its template_id, and its other fields are not written to sink.
func LoadTemplateDir(ctx context.Context, dir string, sink RuleSink) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read template directory %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".yaml")
		if err := loadOneTemplate(ctx, dir, id, sink); err != nil {
			return err
		}
	}
	return nil
}

func loadOneTemplate(ctx context.Context, dir, id string, sink RuleSink) error {
	metaPath := filepath.Join(dir, id+".yaml")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("read template metadata %q: %w", metaPath, err)
	}
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("parse template metadata %q: %w", metaPath, err)
	}
	if tf.TemplateID == "" {
		tf.TemplateID = id
	}

	csvPath := filepath.Join(dir, id+".csv")
	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("open rules CSV %q: %w", csvPath, err)
	}
	defer f.Close()

	if _, err := ImportRulesCSV(ctx, sink, f); err != nil {
		return fmt.Errorf("import rules for template %q: %w", tf.TemplateID, err)
	}
	return nil
}

// Watcher autoloads a template directory on change, the concrete shape of
// the "template directory, scenario-autoload flag" environment variables.
type Watcher struct {
	dir    string
	sink   RuleSink
	logger *slog.Logger
	fsw    *fsnotify.Watcher
}

// NewWatcher starts watching dir for template/rule changes. Call Close to
// stop. Errors from individual reload attempts are logged, not returned,
// since a bad file on disk must not take down an already-running engine.
func NewWatcher(dir string, sink RuleSink, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch template directory %q: %w", dir, err)
	}

	w := &Watcher{dir: dir, sink: sink, logger: logger, fsw: fsw}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".yaml") && !strings.HasSuffix(ev.Name, ".csv") {
				continue
			}
			w.logger.Info("template directory change detected", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			if err := LoadTemplateDir(context.Background(), w.dir, w.sink); err != nil {
				w.logger.Error("autoload failed", slog.String("error", err.Error()))
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("template watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
