// Package dataset describes the datasets this module knows how to repackage.
//
// A Descriptor carries every count and name the manifest, fetch and split
// stages need. The built-in descriptors are returned by NSD and Object2Vec;
// other mirrors or subsets can be described in YAML and read with Load.
package dataset

import (
	"slices"
	"sort"

	"github.com/bonnerlab/datasets/errors"
)

// ROIType partitions the ROI registry.
type ROIType string

const (
	// Surface ROIs are defined on the FreeSurfer surface of each subject.
	Surface ROIType = "surface"
	// Volume ROIs are defined on shared volumetric templates.
	Volume ROIType = "volume"
)

// ROITypes lists the ROI types in manifest order.
var ROITypes = []ROIType{Surface, Volume}

// Auxiliary file roles.
const (
	FileStimuli    = "stimuli"
	FileStimInfo   = "stim_info"
	FileImageBrick = "image_brick"
	FileConditions = "conditions"
	FileCVSets     = "cv_sets"
	FileStimuliDir = "stimuli_dir"
)

// ImageShape is the per-stimulus shape of a packed image array.
type ImageShape struct {
	Height   int `yaml:"height" json:"height"`
	Width    int `yaml:"width" json:"width"`
	Channels int `yaml:"channels" json:"channels"`
}

// Len is the number of values in one stimulus.
func (s ImageShape) Len() int {
	return s.Height * s.Width * s.Channels
}

// ROIs is the ROI registry partitioned by type.
type ROIs struct {
	Surface []string `yaml:"surface,omitempty" json:"surface,omitempty"`
	Volume  []string `yaml:"volume,omitempty" json:"volume,omitempty"`
}

// Groups returns the ROI groups of type t.
func (r ROIs) Groups(t ROIType) []string {
	switch t {
	case Surface:
		return r.Surface
	case Volume:
		return r.Volume
	}
	return nil
}

// Descriptor is the static description of a dataset. Values returned by this
// package are never shared, so callers may keep them without copying.
type Descriptor struct {
	Name            string            `yaml:"name" json:"name"`
	Identifier      string            `yaml:"identifier" json:"identifier"`
	Bucket          string            `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Subjects        int               `yaml:"subjects" json:"subjects"`
	Sessions        []int             `yaml:"sessions,omitempty" json:"sessions,omitempty"`
	HeldOutSessions int               `yaml:"held_out_sessions" json:"held_out_sessions"`
	Stimuli         int               `yaml:"stimuli" json:"stimuli"`
	Image           *ImageShape       `yaml:"image,omitempty" json:"image,omitempty"`
	Hemispheres     []string          `yaml:"hemispheres,omitempty" json:"hemispheres,omitempty"`
	ROIs            ROIs              `yaml:"rois,omitempty" json:"rois,omitempty"`
	Files           map[string]string `yaml:"files,omitempty" json:"files,omitempty"`
}

// SessionsFor is the number of released sessions for a 0-based subject,
// clamped at zero when more sessions are held out than were recorded.
func (d Descriptor) SessionsFor(subject int) int {
	if subject < 0 || subject >= len(d.Sessions) {
		return 0
	}
	return max(0, d.Sessions[subject]-d.HeldOutSessions)
}

// File returns the name registered for an auxiliary file role.
func (d Descriptor) File(role string) (string, error) {
	name, ok := d.Files[role]
	if !ok || name == "" {
		return "", errors.Newf(errors.CodeInvalidConfig, "dataset.File",
			"dataset %q has no %q file", d.Name, role)
	}
	return name, nil
}

// Clone returns a deep copy of d.
func (d Descriptor) Clone() Descriptor {
	c := d
	c.Sessions = slices.Clone(d.Sessions)
	c.Hemispheres = slices.Clone(d.Hemispheres)
	c.ROIs = ROIs{Surface: slices.Clone(d.ROIs.Surface), Volume: slices.Clone(d.ROIs.Volume)}
	if d.Image != nil {
		img := *d.Image
		c.Image = &img
	}
	if d.Files != nil {
		c.Files = make(map[string]string, len(d.Files))
		for k, v := range d.Files {
			c.Files[k] = v
		}
	}
	return c
}

// NSD is the 1.8mm GLMsingle preparation of the Natural Scenes Dataset.
func NSD() Descriptor {
	return Descriptor{
		Name:            "nsd",
		Identifier:      "allen2021.natural_scenes",
		Bucket:          "natural-scenes-dataset",
		Subjects:        8,
		Sessions:        []int{40, 40, 32, 30, 40, 32, 40, 30},
		HeldOutSessions: 3,
		Stimuli:         73000,
		Image:           &ImageShape{Height: 425, Width: 425, Channels: 3},
		Hemispheres:     []string{"lh", "rh"},
		ROIs: ROIs{
			Surface: []string{
				"prf-visualrois",
				"prf-eccrois",
				"floc-bodies",
				"floc-faces",
				"floc-places",
				"floc-words",
				"nsdgeneral",
				"streams",
				"HCP_MMP1",
				"Kastner2015",
				"corticalsulc",
			},
			Volume: []string{"MTL", "thalamus"},
		},
		Files: map[string]string{
			FileStimuli:    "nsddata_stimuli/stimuli/nsd/nsd_stimuli.hdf5",
			FileStimInfo:   "nsddata/experiments/nsd/nsd_stim_info_merged.csv",
			FileImageBrick: "imgBrick",
		},
	}
}

// Object2Vec is the fMRI dataset of Bonner & Epstein (2021). Its files are
// distributed outside the object store and are expected in the working
// directory.
func Object2Vec() Descriptor {
	return Descriptor{
		Name:       "object2vec",
		Identifier: "bonner2021.object2vec",
		Subjects:   4,
		Stimuli:    810,
		Files: map[string]string{
			FileConditions: "conditions.txt",
			FileCVSets:     "cv_sets/subj%02d.mat",
			FileStimuliDir: "stimuli",
		},
	}
}

var registry = map[string]func() Descriptor{
	"nsd":        NSD,
	"object2vec": Object2Vec,
}

// Lookup returns the built-in descriptor registered under name.
func Lookup(name string) (Descriptor, error) {
	ctor, ok := registry[name]
	if !ok {
		return Descriptor{}, errors.Newf(errors.CodeNotFound, "dataset.Lookup",
			"unknown dataset %q (available: %v)", name, Names())
	}
	return ctor(), nil
}

// Names lists the built-in descriptors in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
