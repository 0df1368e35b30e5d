package inference

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrModelNotFound = errors.New("model asset not found")

// Model describes the weights asset the inference backend runs and the
// class names its class ids map to.
type Model struct {
	Path   string
	Name   string
	labels []string
}

// LoadModel checks that the weights asset exists and loads the label
// table. An empty labelsPath selects the COCO class names.
func LoadModel(path string, labelsPath string) (*Model, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat model asset: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrModelNotFound, path)
	}

	labels := cocoLabels
	if labelsPath != "" {
		labels, err = loadLabels(labelsPath)
		if err != nil {
			return nil, err
		}
	}

	return &Model{
		Path:   path,
		Name:   filepath.Base(path),
		labels: labels,
	}, nil
}

// MissingModelMessage is the banner shown when the asset at path is absent.
func MissingModelMessage(path string) string {
	return fmt.Sprintf("Model %s not found! Place it into the /%s folder.",
		filepath.Base(path), filepath.Base(filepath.Dir(path)))
}

// Label returns the class name for classID, or a placeholder when the id
// is outside the label table.
func (m *Model) Label(classID int) string {
	if classID < 0 || classID >= len(m.labels) {
		return fmt.Sprintf("class_%d", classID)
	}
	return m.labels[classID]
}

func (m *Model) NumClasses() int {
	return len(m.labels)
}

func loadLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		label := strings.TrimSpace(scanner.Text())
		if label == "" {
			continue
		}
		labels = append(labels, label)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}

	return labels, nil
}
