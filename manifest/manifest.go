// Package manifest enumerates the remote object keys of a dataset and the
// local paths of its decoded stimuli. Every function here is a pure function
// of a dataset.Descriptor: the full key list is known before any byte is
// fetched.
package manifest

import (
	"fmt"
	"path"

	"github.com/bonnerlab/datasets/dataset"
)

const (
	ppdataDir = "nsddata/ppdata"
	betasDir  = "nsddata_betas/ppdata"
	glmDir    = "func1pt8mm/betas_fithrf_GLMdenoise_RR"
)

// NCSNRSuffixes are the noise-ceiling SNR map variants shipped per subject.
var NCSNRSuffixes = []string{"", "_split1", "_split2"}

// NSDKeys returns every key of an NSD-layout dataset: the stimulus files,
// followed by each subject's keys in subject order.
func NSDKeys(d dataset.Descriptor) []string {
	keys := StimulusKeys(d)
	for s := range d.Subjects {
		keys = append(keys, SubjectKeys(d, s)...)
	}
	return keys
}

// StimulusKeys returns the stimulus brick and stimulus metadata keys that the
// descriptor registers, in that order.
func StimulusKeys(d dataset.Descriptor) []string {
	var keys []string
	for _, role := range []string{dataset.FileStimuli, dataset.FileStimInfo} {
		if key := d.Files[role]; key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// SubjectKeys returns the keys of one 0-based subject: ROI masks and labels,
// betas, ncsnr maps and anatomical volumes.
func SubjectKeys(d dataset.Descriptor, subject int) []string {
	keys := ROIKeys(d, subject)
	keys = append(keys, BetaKeys(d, subject)...)
	keys = append(keys, NCSNRKeys(subject)...)
	keys = append(keys, AnatomicalKeys(subject)...)
	return keys
}

// ROIKeys returns, for each ROI type and group, one mask per hemisphere
// followed by the group's label table.
func ROIKeys(d dataset.Descriptor, subject int) []string {
	subj := SubjectDir(subject)
	var keys []string
	for _, roiType := range dataset.ROITypes {
		for _, group := range d.ROIs.Groups(roiType) {
			for _, hemi := range d.Hemispheres {
				keys = append(keys, path.Join(ppdataDir, subj, "func1pt8mm/roi", hemi+"."+group+".nii.gz"))
			}
			switch roiType {
			case dataset.Surface:
				keys = append(keys, path.Join("nsddata/freesurfer", subj, "label", group+".mgz.ctab"))
			case dataset.Volume:
				keys = append(keys, path.Join("nsddata/templates", group+".ctab"))
			}
		}
	}
	return keys
}

// BetaKeys returns one key per released session of a subject.
func BetaKeys(d dataset.Descriptor, subject int) []string {
	n := d.SessionsFor(subject)
	keys := make([]string, 0, n)
	for session := range n {
		keys = append(keys, path.Join(betasDir, SubjectDir(subject), glmDir,
			fmt.Sprintf("betas_session%02d.hdf5", session+1)))
	}
	return keys
}

// NCSNRKeys returns the noise-ceiling maps of a subject.
func NCSNRKeys(subject int) []string {
	keys := make([]string, 0, len(NCSNRSuffixes))
	for _, suffix := range NCSNRSuffixes {
		keys = append(keys, path.Join(betasDir, SubjectDir(subject), glmDir, "ncsnr"+suffix+".nii.gz"))
	}
	return keys
}

// AnatomicalKeys returns the T1 and brain mask volumes of a subject.
func AnatomicalKeys(subject int) []string {
	dir := path.Join(ppdataDir, SubjectDir(subject), "func1pt8mm")
	return []string{
		path.Join(dir, "T1_to_func1pt8mm.nii.gz"),
		path.Join(dir, "brainmask.nii.gz"),
	}
}

// SubjectDir formats a 0-based subject index as its 1-based directory name.
func SubjectDir(subject int) string {
	return fmt.Sprintf("subj%02d", subject+1)
}

// ImageID names the 0-based stimulus i.
func ImageID(i int) string {
	return fmt.Sprintf("image%05d", i)
}

// ImagePath is the PNG path of stimulus i under dir.
func ImagePath(dir string, i int) string {
	return path.Join(dir, ImageID(i)+".png")
}

// ImagePaths returns the PNG paths of the first n stimuli.
func ImagePaths(dir string, n int) []string {
	paths := make([]string, 0, max(n, 0))
	for i := range n {
		paths = append(paths, ImagePath(dir, i))
	}
	return paths
}
