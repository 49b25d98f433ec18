package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DomainEntry is one knowledge domain of the catalogue.
type DomainEntry struct {
	ID     string   `yaml:"id" json:"id"`
	Name   string   `yaml:"name" json:"name"`
	File   string   `yaml:"file" json:"file"`
	Topics []string `yaml:"topics,omitempty" json:"topics,omitempty"`
}

// Catalogue lists the interview domains and the file backing each one.
type Catalogue struct {
	Domains []DomainEntry `yaml:"domains"`
}

// DefaultCatalogue returns the seven built-in interview domains.
func DefaultCatalogue() *Catalogue {
	return &Catalogue{Domains: []DomainEntry{
		{ID: "backend", Name: "Backend Development", File: "backend.txt",
			Topics: []string{"APIs", "Server Architecture", "Protocols", "Performance"}},
		{ID: "database", Name: "Database Systems", File: "database.txt",
			Topics: []string{"Data Modeling", "Query Optimization", "Indexing", "Transactions"}},
		{ID: "frontend", Name: "Frontend Development", File: "frontend.txt",
			Topics: []string{"Frameworks", "UI/UX", "JavaScript", "Performance"}},
		{ID: "mern", Name: "MERN Stack", File: "mern_integration.txt",
			Topics: []string{"MongoDB", "Express", "React", "Node.js", "Full-stack"}},
		{ID: "oop", Name: "Object-Oriented Programming", File: "oop.txt",
			Topics: []string{"Design Patterns", "SOLID Principles", "Inheritance", "Polymorphism"}},
		{ID: "architecture", Name: "Software Architecture", File: "software_architecture.txt",
			Topics: []string{"System Design", "Scalability", "Patterns", "Best Practices"}},
		{ID: "sdlc", Name: "Software Development Lifecycle", File: "software_development_lifecycle.txt",
			Topics: []string{"Methodologies", "Testing", "Deployment", "CI/CD"}},
	}}
}

// LoadCatalogue reads a YAML catalogue. An empty path yields the defaults.
func LoadCatalogue(path string) (*Catalogue, error) {
	if path == "" {
		return DefaultCatalogue(), nil
	}
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("read catalogue %s: %w", path, err)
	}
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalogue %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalogue %s: %w", path, err)
	}
	return &c, nil
}

// Validate requires at least one domain and unique, non-empty IDs and files.
func (c *Catalogue) Validate() error {
	if len(c.Domains) == 0 {
		return fmt.Errorf("no domains defined")
	}
	seen := make(map[string]bool, len(c.Domains))
	for i, d := range c.Domains {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("domains[%d]: id is required", i)
		}
		if d.File == "" {
			return fmt.Errorf("domains[%d] (%s): file is required", i, d.ID)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate domain id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

// Lookup finds a domain by ID or by case-insensitive name.
func (c *Catalogue) Lookup(key string) (DomainEntry, bool) {
	for _, d := range c.Domains {
		if d.ID == key || strings.EqualFold(d.Name, key) {
			return d, true
		}
	}
	return DomainEntry{}, false
}

// IDs returns the domain IDs in catalogue order.
func (c *Catalogue) IDs() []string {
	ids := make([]string, len(c.Domains))
	for i, d := range c.Domains {
		ids[i] = d.ID
	}
	return ids
}

// Save writes the catalogue as YAML.
func (c *Catalogue) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal catalogue: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
