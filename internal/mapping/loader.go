package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mqtt-zenoh-bridge/internal/logger"
)

// RulesLoader handles loading mapping rules from the filesystem
type RulesLoader struct {
	logger *logger.Logger
}

// NewRulesLoader creates a new rules loader
func NewRulesLoader(log *logger.Logger) *RulesLoader {
	return &RulesLoader{
		logger: log,
	}
}

// Load loads rules from a file, or from every rule file in a directory and
// its subdirectories in lexical path order. Rule order within and across
// files is preserved, since matching is first-match-wins.
func (l *RulesLoader) Load(path string) ([]Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rules path: %w", err)
	}

	if !info.IsDir() {
		return l.loadFile(path)
	}
	return l.LoadFromDirectory(path)
}

// LoadFromDirectory loads all rules from a directory and its subdirectories
func (l *RulesLoader) LoadFromDirectory(path string) ([]Rule, error) {
	var rules []Rule

	err := filepath.Walk(path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".json", ".yaml", ".yml":
		default:
			return nil
		}

		fileRules, err := l.loadFile(path)
		if err != nil {
			return err
		}

		rules = append(rules, fileRules...)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	l.logger.Info("mapping rules loaded",
		"totalRules", len(rules))

	return rules, nil
}

func (l *RulesLoader) loadFile(path string) ([]Rule, error) {
	l.logger.Debug("loading rule file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Error("failed to read rule file",
			"path", path,
			"error", err)
		return nil, err
	}

	var rules []Rule
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &rules)
	default:
		err = json.Unmarshal(data, &rules)
	}
	if err != nil {
		l.logger.Error("failed to parse rule file",
			"path", path,
			"error", err)
		return nil, fmt.Errorf("failed to parse rule file %s: %w", path, err)
	}

	l.logger.Debug("successfully loaded rules",
		"path", path,
		"count", len(rules))

	return rules, nil
}
