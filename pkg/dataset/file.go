package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1F47E/geo-filter/pkg/models"
	"github.com/1F47E/geo-filter/pkg/rtree"
)

// ErrUnknownFormat is returned for a file extension with no codec
var ErrUnknownFormat = errors.New("unknown file format")

type format int

const (
	formatJSON format = iota
	formatYAML
	formatGob
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".gob":
		return formatGob, nil
	}
	return 0, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

// Load reads a record file. JSON and YAML files hold a list of flat
// objects; gob files are saved R-tree indexes and load as id/lat/lng rows.
func Load(path string) ([]Row, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	if f == formatGob {
		points, err := rtree.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return FromPoints(points), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var rows []Row
	switch f {
	case formatJSON:
		err = json.Unmarshal(data, &rows)
	case formatYAML:
		err = yaml.Unmarshal(data, &rows)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return rows, nil
}

// Save writes rows in the format chosen by the file extension. Gob files
// keep only the id and the coordinates read from latKey and lngKey.
func Save(path string, rows []Row, latKey, lngKey string) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}

	var data []byte
	switch f {
	case formatGob:
		return rtree.WriteFile(path, ToPoints(rows, latKey, lngKey))
	case formatJSON:
		data, err = json.MarshalIndent(rows, "", "  ")
	case formatYAML:
		data, err = yaml.Marshal(rows)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SavePoints writes generated points as a record file with lat and lng keys
func SavePoints(path string, points []*models.Point) error {
	return Save(path, FromPoints(points), models.FieldLat, models.FieldLng)
}
