package metadata

import (
	"fmt"
	"strconv"

	"github.com/bonnerlab/datasets/dataset"
	"github.com/bonnerlab/datasets/errors"
	"github.com/bonnerlab/datasets/fs"
	"github.com/bonnerlab/datasets/manifest"
)

// ColumnNSDID is the stimulus index column of the NSD stimulus information table.
const ColumnNSDID = "nsdId"

// BuildNSD assembles the NSD stimulus table: one row per decoded image in
// imagesDir, carrying the columns of the stimulus information CSV row whose
// nsdId equals the image index. The CSV's unnamed index column is dropped.
// Every image must have exactly one information row.
func BuildNSD(filesystem fs.Filesystem, d dataset.Descriptor, imagesDir string) (*Table, error) {
	const op = "metadata.BuildNSD"

	name, err := d.File(dataset.FileStimInfo)
	if err != nil {
		return nil, err
	}
	f, err := filesystem.Open(name)
	if err != nil {
		return nil, errors.Wrap(errors.CodeNotFound, op, err)
	}
	defer f.Close()

	info, err := ReadCSV(f)
	if err != nil {
		return nil, err
	}
	idCol := info.Index(ColumnNSDID)
	if idCol < 0 {
		return nil, errors.Newf(errors.CodeIntegrity, op, "%s: missing %q column", name, ColumnNSDID)
	}

	var keep []int
	columns := []string{ColumnStimulusID, ColumnFilename}
	for i, c := range info.Columns {
		if c == "" || c == ColumnStimulusID || c == ColumnFilename {
			continue
		}
		keep = append(keep, i)
		columns = append(columns, c)
	}

	byID := make(map[int][]string, len(info.Rows))
	var problems []error
	for r, row := range info.Rows {
		id, err := strconv.Atoi(row[idCol])
		if err != nil {
			problems = append(problems, fmt.Errorf("%s row %d: nsdId %q is not an integer", name, r+1, row[idCol]))
			continue
		}
		if _, dup := byID[id]; dup {
			problems = append(problems, fmt.Errorf("%s row %d: nsdId %d listed twice", name, r+1, id))
			continue
		}
		byID[id] = row
	}

	table := NewTable(columns...)
	for i := range d.Stimuli {
		row, ok := byID[i]
		if !ok {
			problems = append(problems, fmt.Errorf("%s: no row for nsdId %d", name, i))
			continue
		}
		cells := []string{manifest.ImageID(i), manifest.ImagePath(imagesDir, i)}
		for _, c := range keep {
			cells = append(cells, row[c])
		}
		if err := table.Append(cells...); err != nil {
			return nil, err
		}
	}
	if len(problems) > 0 {
		return nil, errors.Wrap(errors.CodeIntegrity, op, errors.Join(problems...))
	}
	return table, nil
}
