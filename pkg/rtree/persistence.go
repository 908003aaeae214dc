package rtree

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/1F47E/geo-filter/pkg/models"
)

// IndexData represents the serializable form of the geo index
type IndexData struct {
	Points []*models.Point `json:"points"`
	Count  int64           `json:"count"`
}

// world covers every valid coordinate
var world = models.BoundingBox{
	TopLeft:     models.Location{Lat: 90, Lon: -180},
	BottomRight: models.Location{Lat: -90, Lon: 180},
}

// Points returns every indexed point
func (g *GeoIndex) Points() ([]*models.Point, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	points, err := g.candidates(world)
	if err != nil {
		return nil, fmt.Errorf("failed to extract points: %w", err)
	}
	return points, nil
}

// SaveToFile saves the index to a binary file
func (g *GeoIndex) SaveToFile(filename string) error {
	points, err := g.Points()
	if err != nil {
		return err
	}
	return WriteFile(filename, points)
}

// WriteFile encodes points in the saved index format
func WriteFile(filename string, points []*models.Point) error {
	data := IndexData{
		Points: points,
		Count:  int64(len(points)),
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	return file.Close()
}

// LoadFromFile replaces the index contents with the points stored in filename
func (g *GeoIndex) LoadFromFile(filename string) error {
	points, err := ReadFile(filename)
	if err != nil {
		return err
	}

	g.Clear()
	if err := g.IndexPoints(points); err != nil {
		return fmt.Errorf("failed to index points: %w", err)
	}

	return nil
}

// ReadFile decodes the points of a saved index without building a tree
func ReadFile(filename string) ([]*models.Point, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var data IndexData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}

	return data.Points, nil
}
