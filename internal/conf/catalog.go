package conf

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

// Input tensor layouts understood by the inference backends.
const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// Classifier output kinds. Logits are passed through softmax before fusion.
const (
	OutputProbabilities = "probabilities"
	OutputLogits        = "logits"
)

// PlantModel is one label catalog entry: a plant, the classifier artifact
// serving it and the classifier's ordered output labels.
type PlantModel struct {
	Name          string
	Path          string   // classifier artifact, .tflite or .onnx
	Labels        []string // output order of the classifier
	LabelFile     string   // alternative to Labels, one label per line
	Normalization string   // pixel normalization family
	Layout        string   // nhwc or nchw
	Output        string   // probabilities or logits
}

// NormalizeName folds a plant or disease name for case-insensitive
// comparison. Surrounding whitespace is dropped.
func NormalizeName(name string) string {
	// A Caser keeps state, so one is created per call.
	return cases.Fold().String(strings.TrimSpace(name))
}

// Catalog returns the label catalog with plant names normalized and
// relative artifact and label paths resolved against models.dir.
func (s *Settings) Catalog() []PlantModel {
	catalog := make([]PlantModel, 0, len(s.Models.Plants))
	for _, p := range s.Models.Plants {
		entry := p
		entry.Name = NormalizeName(p.Name)
		entry.Path = s.resolveModelPath(p.Path)
		if p.LabelFile != "" {
			entry.LabelFile = s.resolveModelPath(p.LabelFile)
		}
		entry.Labels = append([]string(nil), p.Labels...)
		if entry.Normalization == "" {
			entry.Normalization = "unit"
		}
		entry.Layout = strings.ToLower(entry.Layout)
		if entry.Layout == "" {
			entry.Layout = defaultLayout(entry.Path)
		}
		entry.Output = strings.ToLower(entry.Output)
		if entry.Output == "" {
			entry.Output = OutputProbabilities
		}
		catalog = append(catalog, entry)
	}
	return catalog
}

func (s *Settings) resolveModelPath(path string) string {
	if path == "" || filepath.IsAbs(path) || s.Models.Dir == "" {
		return path
	}
	return filepath.Join(s.Models.Dir, path)
}

// defaultLayout picks the layout conventional for the artifact format.
func defaultLayout(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".onnx") {
		return LayoutNCHW
	}
	return LayoutNHWC
}

// InferenceThreads returns models.threads, or DefaultThreadCount when unset.
func (s *Settings) InferenceThreads() int {
	if s.Models.Threads > 0 {
		return s.Models.Threads
	}
	return DefaultThreadCount()
}
