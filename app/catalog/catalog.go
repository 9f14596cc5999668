package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed courses.yaml
var defaultCatalog []byte

var ErrUnknownCourse = errors.New("unknown course")

type Course struct {
	Type        string            `yaml:"type"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Price       int64             `yaml:"price"`
	Features    []string          `yaml:"features"`
	Links       map[string]string `yaml:"links"`
}

type manifest struct {
	Courses []Course `yaml:"courses"`
}

// Catalog is an immutable, ordered set of purchasable courses.
type Catalog struct {
	courses []Course
	byType  map[string]Course
}

// Load reads the catalog at path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if strings.TrimSpace(path) != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read course catalog: %w", err)
		}
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse course catalog: %w", err)
	}
	if len(m.Courses) == 0 {
		return nil, errors.New("course catalog is empty")
	}

	c := &Catalog{
		courses: make([]Course, 0, len(m.Courses)),
		byType:  make(map[string]Course, len(m.Courses)),
	}
	for _, course := range m.Courses {
		course.Type = strings.ToLower(strings.TrimSpace(course.Type))
		if course.Type == "" {
			return nil, errors.New("course catalog entry without type")
		}
		if course.Price <= 0 {
			return nil, fmt.Errorf("course %s: price must be positive", course.Type)
		}
		if _, exists := c.byType[course.Type]; exists {
			return nil, fmt.Errorf("course %s: duplicate entry", course.Type)
		}
		c.courses = append(c.courses, course)
		c.byType[course.Type] = course
	}

	return c, nil
}

func (c *Catalog) Lookup(courseType string) (Course, error) {
	course, ok := c.byType[strings.ToLower(strings.TrimSpace(courseType))]
	if !ok {
		return Course{}, ErrUnknownCourse
	}
	return course, nil
}

func (c *Catalog) All() []Course {
	out := make([]Course, len(c.courses))
	copy(out, c.courses)
	return out
}
