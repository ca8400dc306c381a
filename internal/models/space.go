package models

type Space struct {
	ID       int64  `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"` // e.g. "lab", "classroom"
	Location string `yaml:"location" json:"location,omitempty"`
	IsActive bool   `yaml:"is_active" json:"is_active"`
}
