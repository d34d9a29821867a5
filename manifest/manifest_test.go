package manifest

import (
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonnerlab/datasets/dataset"
)

func subset() dataset.Descriptor {
	d := dataset.NSD()
	d.Subjects = 2
	d.Sessions = []int{2, 1}
	d.HeldOutSessions = 1
	d.ROIs = dataset.ROIs{Surface: []string{"nsdgeneral"}, Volume: []string{"MTL"}}
	return d
}

func countBetas(keys []string) int {
	n := 0
	for _, k := range keys {
		if strings.Contains(k, "/betas_session") {
			n++
		}
	}
	return n
}

func TestNSDKeys_Golden(t *testing.T) {
	keys := NSDKeys(subset())

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "nsd_subset", []byte(strings.Join(keys, "\n")+"\n"))
}

func TestNSDKeys_StimulusFilesFirst(t *testing.T) {
	keys := NSDKeys(dataset.NSD())
	require.GreaterOrEqual(t, len(keys), 2)
	assert.Equal(t, "nsddata_stimuli/stimuli/nsd/nsd_stimuli.hdf5", keys[0])
	assert.Equal(t, "nsddata/experiments/nsd/nsd_stim_info_merged.csv", keys[1])
}

func TestBetaCount(t *testing.T) {
	tests := []struct {
		name     string
		sessions []int
		heldOut  int
		want     int
	}{
		{name: "nsd defaults", sessions: []int{40, 40, 32, 30, 40, 32, 40, 30}, heldOut: 3, want: 284 - 24},
		{name: "nothing held out", sessions: []int{40, 40, 32, 30, 40, 32, 40, 30}, heldOut: 0, want: 284},
		{name: "everything held out", sessions: []int{2, 2}, heldOut: 2, want: 0},
		{name: "more held out than recorded", sessions: []int{1, 5}, heldOut: 3, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := dataset.NSD()
			d.Subjects = len(tt.sessions)
			d.Sessions = tt.sessions
			d.HeldOutSessions = tt.heldOut

			assert.Equal(t, tt.want, countBetas(NSDKeys(d)))
		})
	}
}

func TestBetaCount_IndependentOfROIOrder(t *testing.T) {
	d := dataset.NSD()
	before := countBetas(NSDKeys(d))

	slices.Reverse(d.ROIs.Surface)
	slices.Reverse(d.ROIs.Volume)
	assert.Equal(t, before, countBetas(NSDKeys(d)))
}

func TestSubjectKeys_SingleSubject(t *testing.T) {
	d := dataset.Descriptor{Subjects: 1, Sessions: []int{2}, HeldOutSessions: 1}

	keys := SubjectKeys(d, 0)
	assert.Equal(t, []string{
		"nsddata_betas/ppdata/subj01/func1pt8mm/betas_fithrf_GLMdenoise_RR/betas_session01.hdf5",
		"nsddata_betas/ppdata/subj01/func1pt8mm/betas_fithrf_GLMdenoise_RR/ncsnr.nii.gz",
		"nsddata_betas/ppdata/subj01/func1pt8mm/betas_fithrf_GLMdenoise_RR/ncsnr_split1.nii.gz",
		"nsddata_betas/ppdata/subj01/func1pt8mm/betas_fithrf_GLMdenoise_RR/ncsnr_split2.nii.gz",
		"nsddata/ppdata/subj01/func1pt8mm/T1_to_func1pt8mm.nii.gz",
		"nsddata/ppdata/subj01/func1pt8mm/brainmask.nii.gz",
	}, keys)
}

func TestNSDKeys_Empty(t *testing.T) {
	assert.Empty(t, NSDKeys(dataset.Descriptor{}))
	assert.Empty(t, ROIKeys(dataset.Descriptor{Hemispheres: []string{"lh"}}, 0))
	assert.Empty(t, BetaKeys(dataset.Descriptor{Subjects: 1, Sessions: []int{0}}, 0))
}

func TestNSDKeys_FullCount(t *testing.T) {
	d := dataset.NSD()
	perSubjectROI := len(d.ROIs.Surface)*3 + len(d.ROIs.Volume)*3
	want := 2 + d.Subjects*(perSubjectROI+3+2) + (284 - 24)
	assert.Len(t, NSDKeys(d), want)
}

func TestImagePaths(t *testing.T) {
	assert.Equal(t, "image00000", ImageID(0))
	assert.Equal(t, "image72999", ImageID(72999))
	assert.Equal(t, "images/image00042.png", ImagePath("images", 42))
	assert.Equal(t, []string{"images/image00000.png", "images/image00001.png"}, ImagePaths("images", 2))
	assert.Empty(t, ImagePaths("images", 0))
	assert.Empty(t, ImagePaths("images", -1))
}

func TestSubjectDir(t *testing.T) {
	assert.Equal(t, "subj01", SubjectDir(0))
	assert.Equal(t, "subj08", SubjectDir(7))
}
