package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonnerlab/datasets/errors"
)

func TestNSD(t *testing.T) {
	d := NSD()

	assert.Equal(t, 8, d.Subjects)
	assert.Equal(t, []int{40, 40, 32, 30, 40, 32, 40, 30}, d.Sessions)
	assert.Equal(t, 3, d.HeldOutSessions)
	assert.Equal(t, 73000, d.Stimuli)
	assert.Equal(t, "natural-scenes-dataset", d.Bucket)
	assert.Equal(t, ImageShape{Height: 425, Width: 425, Channels: 3}, *d.Image)
	assert.Len(t, d.ROIs.Surface, 11)
	assert.Equal(t, []string{"MTL", "thalamus"}, d.ROIs.Volume)
	require.NoError(t, d.Validate())
}

func TestObject2Vec(t *testing.T) {
	d := Object2Vec()
	require.NoError(t, d.Validate())

	name, err := d.File(FileCVSets)
	require.NoError(t, err)
	assert.Equal(t, "cv_sets/subj%02d.mat", name)

	_, err = d.File(FileStimuli)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidConfig))
}

func TestDescriptorsAreIndependent(t *testing.T) {
	a := NSD()
	a.Sessions[0] = 1
	a.ROIs.Surface[0] = "changed"
	a.Files[FileStimuli] = "changed"

	b := NSD()
	assert.Equal(t, 40, b.Sessions[0])
	assert.Equal(t, "prf-visualrois", b.ROIs.Surface[0])
	assert.Equal(t, "nsddata_stimuli/stimuli/nsd/nsd_stimuli.hdf5", b.Files[FileStimuli])
}

func TestClone(t *testing.T) {
	a := NSD()
	b := a.Clone()
	b.Sessions[0] = 0
	b.Image.Height = 1
	b.Files["x"] = "y"

	assert.Equal(t, 40, a.Sessions[0])
	assert.Equal(t, 425, a.Image.Height)
	assert.NotContains(t, a.Files, "x")
}

func TestSessionsFor(t *testing.T) {
	d := Descriptor{Subjects: 3, Sessions: []int{5, 2, 0}, HeldOutSessions: 3}

	assert.Equal(t, 2, d.SessionsFor(0))
	assert.Equal(t, 0, d.SessionsFor(1), "held-out count clamps at zero")
	assert.Equal(t, 0, d.SessionsFor(2))
	assert.Equal(t, 0, d.SessionsFor(3), "out of range")
	assert.Equal(t, 0, d.SessionsFor(-1))
}

func TestLookup(t *testing.T) {
	d, err := Lookup("nsd")
	require.NoError(t, err)
	assert.Equal(t, "allen2021.natural_scenes", d.Identifier)

	_, err = Lookup("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	assert.Equal(t, []string{"nsd", "object2vec"}, Names())
}

func TestCheckSubjectTemplate(t *testing.T) {
	tests := []struct {
		template string
		wantErr  bool
	}{
		{template: "cv_sets/subj%02d.mat"},
		{template: "cv_sets/subj%d.mat"},
		{template: "100%%/subj%3d.mat"},
		{template: "cv_sets/subj01.mat", wantErr: true},
		{template: "cv_sets/subj%s.mat", wantErr: true},
		{template: "cv_sets/%d/subj%02d.mat", wantErr: true},
		{template: "cv_sets/%n%n%n", wantErr: true},
		{template: "cv_sets/subj%", wantErr: true},
		{template: "cv_sets/subj%[1]d.mat", wantErr: true},
		{template: "cv_sets/subj%x.mat", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			err := CheckSubjectTemplate(tt.template)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate_CVSetsTemplate(t *testing.T) {
	d := Object2Vec()
	require.NoError(t, d.Validate())

	d.Files[FileCVSets] = "cv_sets/%s-%d.mat"
	err := d.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidConfig))
	assert.Contains(t, err.Error(), `"%s" is not an integer verb`)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Descriptor)
		wantErr string
	}{
		{name: "valid", mutate: func(*Descriptor) {}},
		{
			name:   "held out exceeds sessions",
			mutate: func(d *Descriptor) { d.HeldOutSessions = 100 },
		},
		{
			name:    "session length mismatch",
			mutate:  func(d *Descriptor) { d.Sessions = d.Sessions[:3] },
			wantErr: "sessions lists 3 subjects, expected 8",
		},
		{
			name:    "negative stimuli",
			mutate:  func(d *Descriptor) { d.Stimuli = -1 },
			wantErr: "counts must not be negative",
		},
		{
			name:    "duplicate roi",
			mutate:  func(d *Descriptor) { d.ROIs.Volume = append(d.ROIs.Volume, "nsdgeneral") },
			wantErr: `roi "nsdgeneral" is registered twice`,
		},
		{
			name:    "rois without hemispheres",
			mutate:  func(d *Descriptor) { d.Hemispheres = nil },
			wantErr: "rois require at least one hemisphere",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NSD()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeInvalidConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
