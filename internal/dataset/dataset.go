// Package dataset reads Market-1501 style image directories.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/kozaktomas/reid-eval/internal/model"
)

// DistractorIdentity marks images that belong to no annotated person.
const DistractorIdentity = -1

// ErrInvalidFilename is returned by ParseFilename for names without a numeric
// identity and camera prefix.
var ErrInvalidFilename = errors.New("invalid Market-1501 filename")

// Sample is one image of the dataset.
type Sample struct {
	Path     string
	Identity int
	Camera   int
}

// Dataset is the list of images of one Market-1501 split.
type Dataset struct {
	Dir        string
	Samples    []Sample
	identities map[int][]int
}

// ParseFilename extracts identity and camera from names like 0002_c1s1_000451_03.jpg.
func ParseFilename(name string) (identity, camera int, err error) {
	base := filepath.Base(name)
	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidFilename, base)
	}

	identity, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: identity: %v", ErrInvalidFilename, base, err)
	}

	cam := parts[1]
	if len(cam) < 2 || cam[0] != 'c' || cam[1] < '0' || cam[1] > '9' {
		return 0, 0, fmt.Errorf("%w: %s: camera", ErrInvalidFilename, base)
	}
	camera = int(cam[1] - '0')

	return identity, camera, nil
}

// Open lists all .jpg images in dir in lexical order.
func Open(dir string) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset dir: %w", err)
	}

	ds := &Dataset{Dir: dir, identities: make(map[int][]int)}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".jpg") {
			continue
		}
		identity, camera, err := ParseFilename(e.Name())
		if err != nil {
			return nil, err
		}
		ds.Samples = append(ds.Samples, Sample{
			Path:     filepath.Join(dir, e.Name()),
			Identity: identity,
			Camera:   camera,
		})
	}
	if len(ds.Samples) == 0 {
		return nil, fmt.Errorf("no .jpg images in %s", dir)
	}

	slices.SortFunc(ds.Samples, func(a, b Sample) int { return strings.Compare(a.Path, b.Path) })
	for i, s := range ds.Samples {
		ds.identities[s.Identity] = append(ds.identities[s.Identity], i)
	}
	return ds, nil
}

// Len returns the number of images.
func (d *Dataset) Len() int {
	return len(d.Samples)
}

// Identities maps each identity to the indices of its images.
func (d *Dataset) Identities() map[int][]int {
	return d.identities
}

// Labels returns the identities of the samples at the given indices.
func (d *Dataset) Labels(indices []int) []int {
	labels := make([]int, len(indices))
	for i, idx := range indices {
		labels[i] = d.Samples[idx].Identity
	}
	return labels
}

// Load reads image i and preprocesses it for the given model.
func (d *Dataset) Load(i int, spec model.Spec) ([]byte, error) {
	if i < 0 || i >= len(d.Samples) {
		return nil, fmt.Errorf("sample index %d out of range [0, %d)", i, len(d.Samples))
	}
	data, err := os.ReadFile(d.Samples[i].Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	out, err := Preprocess(data, spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(d.Samples[i].Path), err)
	}
	return out, nil
}
