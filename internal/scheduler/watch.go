package scheduler

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Watch is a recommendation query repeated on a cron schedule.
type Watch struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"`
	Query    string `yaml:"query"`
	Location string `yaml:"location"`
	Limit    int    `yaml:"limit"`
}

type watchFile struct {
	Watches []Watch `yaml:"watches"`
}

// LoadWatches reads and validates a YAML watch list. Schedules use the
// standard five-field cron syntax (or descriptors such as "@hourly").
//
//	watches:
//	  - name: weekend-markets
//	    schedule: "0 8 * * 6"
//	    query: flea markets
//	    location: Brooklyn, NY
func LoadWatches(path string) ([]Watch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read watch file: %w", err)
	}
	var f watchFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse watch file: %w", err)
	}
	if err := validate(f.Watches); err != nil {
		return nil, fmt.Errorf("watch file %s: %w", path, err)
	}
	return f.Watches, nil
}

func validate(watches []Watch) error {
	var errs []error
	seen := make(map[string]bool, len(watches))
	for i := range watches {
		w := &watches[i]
		w.Name = strings.TrimSpace(w.Name)
		if w.Name == "" {
			w.Name = fmt.Sprintf("watch-%d", i+1)
		}
		if seen[w.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate name", w.Name))
		}
		seen[w.Name] = true

		if strings.TrimSpace(w.Query) == "" {
			errs = append(errs, fmt.Errorf("%s: query is required", w.Name))
		}
		if w.Limit < 0 {
			errs = append(errs, fmt.Errorf("%s: limit must be non-negative", w.Name))
		}
		if _, err := cron.ParseStandard(w.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid schedule %q: %w", w.Name, w.Schedule, err))
		}
	}
	return errors.Join(errs...)
}
