package metadata

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/bonnerlab/datasets/dataset"
	"github.com/bonnerlab/datasets/errors"
	"github.com/bonnerlab/datasets/fs"
	"github.com/bonnerlab/datasets/matfile"
)

// Object2Vec stimulus table columns. Fold columns follow, one per subject.
const (
	ColumnCondition  = "condition"
	ColumnBackground = "background"
)

// cvSetsVar is the MAT-file variable holding a subject's folds.
const cvSetsVar = "sets"

// conditionSuffix is the exemplar suffix that ends every stimulus file stem.
var conditionSuffix = regexp.MustCompile(`^[_\-0-9][0-9]{2}$`)

// Stimulus is one image file of the Object2Vec stimulus directory.
type Stimulus struct {
	ID         string
	Filename   string
	Condition  string
	Background string
}

// FoldColumn names the fold assignment column of a 0-based subject.
func FoldColumn(subject int) string {
	return "cv_set_subject" + strconv.Itoa(subject)
}

// LoadConditions reads a newline-separated list of condition names. Blank
// lines are ignored; a name listed twice is an integrity error.
func LoadConditions(r io.Reader) ([]string, error) {
	const op = "metadata.LoadConditions"

	var conditions []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		c := strings.TrimSpace(sc.Text())
		if c == "" {
			continue
		}
		if seen[c] {
			return nil, errors.Newf(errors.CodeIntegrity, op, "line %d: condition %q listed twice", line, c)
		}
		seen[c] = true
		conditions = append(conditions, c)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.CodeStorage, op, err)
	}
	return conditions, nil
}

// FoldAssignments maps every condition to the index of the set that lists it.
// When sets overlap the last one wins. A condition that no set lists is an
// integrity error; all such conditions are reported together.
func FoldAssignments(conditions []string, sets [][]string) ([]int, error) {
	fold := make(map[string]int)
	for i, set := range sets {
		for _, c := range set {
			fold[c] = i
		}
	}

	out := make([]int, len(conditions))
	var missing []string
	for i, c := range conditions {
		f, ok := fold[c]
		if !ok {
			missing = append(missing, c)
			continue
		}
		out[i] = f
	}
	if len(missing) > 0 {
		return nil, errors.Newf(errors.CodeIntegrity, "metadata.FoldAssignments",
			"%d conditions are in no cross-validation set: %s", len(missing), strings.Join(missing, ", "))
	}
	return out, nil
}

// CVSets extracts the fold lists of a subject's cross-validation file: a cell
// array whose elements hold the condition names of one fold each.
func CVSets(f *matfile.File) ([][]string, error) {
	const op = "metadata.CVSets"

	v, err := f.Var(cvSetsVar)
	if err != nil {
		return nil, err
	}
	cells, ok := v.Value.([]any)
	if !ok {
		return nil, errors.Newf(errors.CodeDecode, op, "%q is a %T, want a cell array", cvSetsVar, v.Value)
	}

	sets := make([][]string, len(cells))
	for i, cell := range cells {
		if sets[i], err = matfile.Strings(cell); err != nil {
			return nil, errors.Wrap(errors.CodeDecode, op, fmt.Errorf("set %d: %w", i, err))
		}
	}
	return sets, nil
}

// ParseStimulusPath derives the table fields of the image at p, a slash path
// below root such as "stimuli/white_bg/airplane-02.jpg". The stem must end in
// a three character exemplar suffix and the file must sit in a directory
// below root whose name starts with the background label.
func ParseStimulusPath(root, p string) (Stimulus, error) {
	const op = "metadata.ParseStimulusPath"
	fail := func(reason string) (Stimulus, error) {
		return Stimulus{}, errors.Newf(errors.CodeIntegrity, op, "%s: %s", p, reason)
	}

	rel, err := filepath.Rel(filepath.FromSlash(root), filepath.FromSlash(p))
	if err != nil || !filepath.IsLocal(rel) {
		return fail("not below the stimulus directory " + root)
	}
	rel = filepath.ToSlash(rel)

	dir, base := path.Split(rel)
	parent := path.Base(path.Clean(dir))
	if dir == "" || parent == "." {
		return fail("not inside a background directory")
	}
	background, _, _ := strings.Cut(parent, "_")
	if background == "" {
		return fail("directory " + parent + " has no background label")
	}

	stem := strings.TrimSuffix(base, path.Ext(base))
	if len(stem) <= 3 {
		return fail("file name too short to hold a condition")
	}
	condition, suffix := stem[:len(stem)-3], stem[len(stem)-3:]
	if !conditionSuffix.MatchString(suffix) {
		return fail(fmt.Sprintf("file name suffix %q is not an exemplar number", suffix))
	}

	return Stimulus{
		ID:         stem + background,
		Filename:   p,
		Condition:  condition,
		Background: background,
	}, nil
}

// DiscoverStimuli returns the .jpg and .png files below root in lexical order.
func DiscoverStimuli(filesystem fs.Filesystem, root string) ([]string, error) {
	var paths []string
	err := filesystem.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch path.Ext(p) {
		case ".jpg", ".png":
			paths = append(paths, filepath.ToSlash(p))
		}
		return nil
	})
	if err != nil {
		code := errors.CodeStorage
		if errors.Is(err, os.ErrNotExist) {
			code = errors.CodeNotFound
		}
		return nil, errors.Wrap(code, "metadata.DiscoverStimuli", err)
	}
	slices.Sort(paths)
	return paths, nil
}

// BuildObject2Vec assembles the Object2Vec stimulus table from the files of
// d below the root of filesystem: one row per stimulus image joined with the
// fold assignments of every subject on the image's condition. Images whose
// path does not parse or whose condition is not listed are integrity errors;
// all of them are reported together and no row is dropped silently.
func BuildObject2Vec(filesystem fs.Filesystem, d dataset.Descriptor) (*Table, error) {
	const op = "metadata.BuildObject2Vec"

	conditionsFile, err := d.File(dataset.FileConditions)
	if err != nil {
		return nil, err
	}
	cvTemplate, err := d.File(dataset.FileCVSets)
	if err != nil {
		return nil, err
	}
	if err := dataset.CheckSubjectTemplate(cvTemplate); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidConfig, op, err)
	}
	stimuliDir, err := d.File(dataset.FileStimuliDir)
	if err != nil {
		return nil, err
	}

	conditions, err := loadConditionsFile(filesystem, conditionsFile)
	if err != nil {
		return nil, err
	}
	conditionIndex := make(map[string]int, len(conditions))
	for i, c := range conditions {
		conditionIndex[c] = i
	}

	// folds[s][c] is the fold of condition c for subject s.
	folds := make([][]int, d.Subjects)
	for s := range d.Subjects {
		sets, err := loadCVSets(filesystem, fmt.Sprintf(cvTemplate, s+1))
		if err != nil {
			return nil, err
		}
		if folds[s], err = FoldAssignments(conditions, sets); err != nil {
			return nil, errors.Wrap(errors.CodeIntegrity, op, fmt.Errorf("subject %d: %w", s, err))
		}
	}

	paths, err := DiscoverStimuli(filesystem, stimuliDir)
	if err != nil {
		return nil, err
	}

	columns := []string{ColumnStimulusID, ColumnFilename, ColumnCondition, ColumnBackground}
	for s := range d.Subjects {
		columns = append(columns, FoldColumn(s))
	}
	table := NewTable(columns...)

	var problems []error
	for _, p := range paths {
		stim, err := ParseStimulusPath(stimuliDir, p)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		c, ok := conditionIndex[stim.Condition]
		if !ok {
			problems = append(problems, fmt.Errorf("%s: condition %q is not in %s", p, stim.Condition, conditionsFile))
			continue
		}

		row := []string{stim.ID, stim.Filename, stim.Condition, stim.Background}
		for s := range d.Subjects {
			row = append(row, strconv.Itoa(folds[s][c]))
		}
		if err := table.Append(row...); err != nil {
			return nil, err
		}
	}
	if len(problems) > 0 {
		return nil, errors.Wrap(errors.CodeIntegrity, op, errors.Join(problems...))
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func loadConditionsFile(filesystem fs.Filesystem, name string) ([]string, error) {
	f, err := filesystem.Open(name)
	if err != nil {
		return nil, errors.Wrap(errors.CodeNotFound, "metadata.LoadConditions", err)
	}
	defer f.Close()
	return LoadConditions(f)
}

func loadCVSets(filesystem fs.Filesystem, name string) ([][]string, error) {
	f, err := filesystem.Open(name)
	if err != nil {
		return nil, errors.Wrap(errors.CodeNotFound, "metadata.CVSets", err)
	}
	defer f.Close()

	mf, err := matfile.Decode(f)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDecode, "metadata.CVSets", fmt.Errorf("%s: %w", name, err))
	}
	sets, err := CVSets(mf)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDecode, "metadata.CVSets", fmt.Errorf("%s: %w", name, err))
	}
	return sets, nil
}
