package dataset

import (
	"fmt"
	"strings"

	"github.com/bonnerlab/datasets/errors"
)

// Validate checks the cross-field rules that the CUE schema does not express.
// Holding out more sessions than a subject recorded is allowed; the subject
// then contributes no beta files.
func (d Descriptor) Validate() error {
	var problems []string

	if d.Name == "" {
		problems = append(problems, "name is required")
	}
	if d.Subjects < 0 || d.Stimuli < 0 || d.HeldOutSessions < 0 {
		problems = append(problems, "counts must not be negative")
	}
	if len(d.Sessions) > 0 && len(d.Sessions) != d.Subjects {
		problems = append(problems,
			fmt.Sprintf("sessions lists %d subjects, expected %d", len(d.Sessions), d.Subjects))
	}
	for i, n := range d.Sessions {
		if n < 0 {
			problems = append(problems, fmt.Sprintf("subject %d has a negative session count", i+1))
		}
	}
	if d.Image != nil && d.Image.Len() <= 0 {
		problems = append(problems, "image shape must be positive")
	}
	if hasROIs(d.ROIs) && len(d.Hemispheres) == 0 {
		problems = append(problems, "rois require at least one hemisphere")
	}
	if dup := firstDuplicate(append(append([]string{}, d.ROIs.Surface...), d.ROIs.Volume...)); dup != "" {
		problems = append(problems, fmt.Sprintf("roi %q is registered twice", dup))
	}
	if t, ok := d.Files[FileCVSets]; ok {
		if err := CheckSubjectTemplate(t); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", FileCVSets, err))
		}
	}

	if len(problems) > 0 {
		return errors.Newf(errors.CodeInvalidConfig, "dataset.Validate",
			"dataset %q: %s", d.Name, strings.Join(problems, "; "))
	}
	return nil
}

// CheckSubjectTemplate reports whether t is a file name template taking the
// 1-based subject number: exactly one %d verb, optionally with flags and a
// width such as %02d. Literal percent signs are written %%.
func CheckSubjectTemplate(t string) error {
	verbs := 0
	for i := 0; i < len(t); i++ {
		if t[i] != '%' {
			continue
		}
		j := i + 1
		for j < len(t) && strings.IndexByte("+-# 0123456789", t[j]) >= 0 {
			j++
		}
		if j == len(t) {
			return fmt.Errorf("template %q ends inside a verb", t)
		}
		switch {
		case t[j] == '%' && j == i+1:
		case t[j] == 'd':
			verbs++
		default:
			return fmt.Errorf("template %q: %q is not an integer verb", t, t[i:j+1])
		}
		i = j
	}
	if verbs != 1 {
		return fmt.Errorf("template %q has %d subject verbs, want 1", t, verbs)
	}
	return nil
}

func hasROIs(r ROIs) bool {
	return len(r.Surface) > 0 || len(r.Volume) > 0
}

func firstDuplicate(values []string) string {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return v
		}
		seen[v] = struct{}{}
	}
	return ""
}
