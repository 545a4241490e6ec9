package classifier

import (
	"bufio"
	"os"
	"strings"

	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
)

// resolveLabels returns the labels of a catalog entry, reading LabelFile
// when no inline labels are configured.
func resolveLabels(model conf.PlantModel) ([]string, error) {
	if len(model.Labels) > 0 {
		return append([]string(nil), model.Labels...), nil
	}
	if model.LabelFile == "" {
		return nil, errors.Newf("no labels configured for plant %q", model.Name).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			ModelContext(model.Name, model.Path).
			Build()
	}
	return readLabelFile(model.LabelFile)
}

// readLabelFile reads one label per line, skipping blank lines.
func readLabelFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Context("label_file", path).
			Build()
	}
	defer func() { _ = file.Close() }()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if label := strings.TrimSpace(scanner.Text()); label != "" {
			labels = append(labels, label)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Context("label_file", path).
			Build()
	}
	if len(labels) == 0 {
		return nil, errors.Newf("label file %s is empty", path).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Build()
	}
	return labels, nil
}
