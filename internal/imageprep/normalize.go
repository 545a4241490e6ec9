package imageprep

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Normalizer maps an 8-bit channel value to the input distribution a
// classifier family was trained on. Channels are indexed 0=R, 1=G, 2=B.
type Normalizer interface {
	Name() string
	Apply(channel int, value uint8) float32
}

// Affine normalizes with value*Scale[c] + Offset[c].
type Affine struct {
	Family string
	Scale  [3]float32
	Offset [3]float32
}

// Name returns the family name.
func (a Affine) Name() string { return a.Family }

// Apply normalizes one channel value.
func (a Affine) Apply(channel int, value uint8) float32 {
	return float32(value)*a.Scale[channel] + a.Offset[channel]
}

// MeanStd builds an Affine normalizer computing (v/255 - mean) / std.
func MeanStd(family string, mean, std [3]float32) Affine {
	a := Affine{Family: family}
	for c := range 3 {
		a.Scale[c] = 1 / (255 * std[c])
		a.Offset[c] = -mean[c] / std[c]
	}
	return a
}

// Built-in normalization families.
const (
	FamilyUnit      = "unit"      // [0,1], plain Keras Rescaling(1/255) models
	FamilySymmetric = "symmetric" // [-1,1], MobileNet and Inception
	FamilyImageNet  = "imagenet"  // ImageNet mean/std, torchvision exports
	FamilyRaw       = "raw"       // 0..255, models embedding their own rescaling (EfficientNet)
)

var (
	normalizersMu sync.RWMutex
	normalizers   = map[string]Normalizer{
		FamilyUnit: Affine{
			Family: FamilyUnit,
			Scale:  [3]float32{1.0 / 255, 1.0 / 255, 1.0 / 255},
		},
		FamilySymmetric: Affine{
			Family: FamilySymmetric,
			Scale:  [3]float32{1.0 / 127.5, 1.0 / 127.5, 1.0 / 127.5},
			Offset: [3]float32{-1, -1, -1},
		},
		FamilyImageNet: MeanStd(FamilyImageNet,
			[3]float32{0.485, 0.456, 0.406},
			[3]float32{0.229, 0.224, 0.225}),
		FamilyRaw: Affine{
			Family: FamilyRaw,
			Scale:  [3]float32{1, 1, 1},
		},
	}
)

// RegisterNormalizer adds or replaces a normalization family.
func RegisterNormalizer(n Normalizer) {
	normalizersMu.Lock()
	defer normalizersMu.Unlock()
	normalizers[strings.ToLower(n.Name())] = n
}

// LookupNormalizer returns the normalizer registered under name.
func LookupNormalizer(name string) (Normalizer, error) {
	normalizersMu.RLock()
	defer normalizersMu.RUnlock()

	n, ok := normalizers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown normalization family %q, available: %s",
			name, strings.Join(normalizerNamesLocked(), ", "))
	}
	return n, nil
}

func normalizerNamesLocked() []string {
	names := make([]string, 0, len(normalizers))
	for name := range normalizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
