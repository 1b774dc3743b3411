package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Station is a configured sampling point.
type Station struct {
	ID        int     `yaml:"id" validate:"gt=0"`
	Name      string  `yaml:"name" validate:"required"`
	Region    string  `yaml:"region"`
	Latitude  float64 `yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `yaml:"longitude" validate:"gte=-180,lte=180"`
	Elevation int     `yaml:"elevation"`
}

type stationsFile struct {
	Stations []Station `yaml:"stations"`
}

// DefaultStations are the Caribbean coast cities sampled when no station file is configured.
func DefaultStations() []Station {
	return []Station{
		{ID: 1, Name: "Santa Marta", Region: "Magdalena", Latitude: 11.2408, Longitude: -74.2120, Elevation: 2},
		{ID: 2, Name: "Barranquilla", Region: "Atlantico", Latitude: 10.9685, Longitude: -74.7813, Elevation: 18},
		{ID: 3, Name: "Cartagena", Region: "Bolivar", Latitude: 10.3910, Longitude: -75.4794, Elevation: 2},
		{ID: 4, Name: "Valledupar", Region: "Cesar", Latitude: 10.4631, Longitude: -73.2532, Elevation: 169},
		{ID: 5, Name: "Riohacha", Region: "La Guajira", Latitude: 11.5444, Longitude: -72.9072, Elevation: 5},
		{ID: 6, Name: "Monteria", Region: "Cordoba", Latitude: 8.7479, Longitude: -75.8814, Elevation: 18},
		{ID: 7, Name: "Sincelejo", Region: "Sucre", Latitude: 9.3047, Longitude: -75.3978, Elevation: 213},
		{ID: 8, Name: "San Andres", Region: "San Andres y Providencia", Latitude: 12.5847, Longitude: -81.7006, Elevation: 3},
	}
}

// LoadStations reads the station list from a YAML file. An empty path
// yields DefaultStations. Order in the file is the polling order.
func LoadStations(path string) ([]Station, error) {
	if path == "" {
		return DefaultStations(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stations file: %w", err)
	}

	return ParseStations(data)
}

// ParseStations decodes a YAML station document.
func ParseStations(data []byte) ([]Station, error) {
	var file stationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse stations file: %w", err)
	}
	if len(file.Stations) == 0 {
		return nil, fmt.Errorf("stations file defines no stations")
	}

	for _, s := range file.Stations {
		if err := validate.Struct(s); err != nil {
			return nil, fmt.Errorf("invalid station %q: %w", s.Name, err)
		}
	}

	return file.Stations, nil
}
