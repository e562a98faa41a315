// Package catalog loads the garment images available for try-on and tracks
// which one is selected.
package catalog

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// Group is a garment category.
type Group string

const (
	// GroupMale holds the garments under <root>/male.
	GroupMale Group = "male"
	// GroupFemale holds the garments under <root>/female.
	GroupFemale Group = "female"
)

// Groups lists every group in display order.
var Groups = []Group{GroupMale, GroupFemale}

// SupportedExtensions are the image file extensions picked up by Load.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg"}

var (
	// ErrEmptyGroup is returned when a group directory has no usable images.
	ErrEmptyGroup = errors.New("garment group is empty")

	// ErrInvalidSelection is returned for an unknown group or an out of range position.
	ErrInvalidSelection = errors.New("invalid garment selection")
)

// ParseGroup converts a string to a Group.
func ParseGroup(s string) (Group, error) {
	g := Group(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Groups {
		if g == known {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: unknown group %q", ErrInvalidSelection, s)
}

// Garment is one selectable garment image.
type Garment struct {
	Group    Group
	Position int
	Name     string
	Path     string
	// Image is the BGRA (or BGR) pixel buffer. It is empty when the file
	// could not be decoded.
	Image gocv.Mat
}

// Title returns the label shown on the info panel, e.g. "MALE SHIRT 2".
func (g *Garment) Title() string {
	return Title(Selection{Group: g.Group, Position: g.Position})
}

// Catalog is the immutable set of garments loaded at startup.
// It is safe for concurrent reads.
type Catalog struct {
	root   string
	groups map[Group][]*Garment
}

// Load scans root/male and root/female for garment images.
// A missing or empty group is an error. Files that fail to decode are kept
// as entries without an image so positions stay stable.
func Load(root string) (*Catalog, error) {
	c := &Catalog{
		root:   root,
		groups: make(map[Group][]*Garment, len(Groups)),
	}

	for _, group := range Groups {
		garments, err := loadGroup(root, group)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.groups[group] = garments
	}

	return c, nil
}

func loadGroup(root string, group Group) ([]*Garment, error) {
	dir := filepath.Join(root, string(group))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load %s garments: %w", group, err)
	}

	var garments []*Garment
	for _, entry := range entries {
		if entry.IsDir() || !isSupported(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		img := gocv.IMRead(path, gocv.IMReadUnchanged)
		if img.Empty() {
			log.Printf("Garment image %s could not be decoded", path)
		}

		garments = append(garments, &Garment{
			Group:    group,
			Position: len(garments) + 1,
			Name:     entry.Name(),
			Path:     path,
			Image:    img,
		})
	}

	if len(garments) == 0 {
		return nil, fmt.Errorf("load %s garments from %s: %w", group, dir, ErrEmptyGroup)
	}

	return garments, nil
}

func isSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// Root returns the directory the catalog was loaded from.
func (c *Catalog) Root() string {
	return c.root
}

// Count returns the number of garments in a group.
func (c *Catalog) Count(group Group) int {
	return len(c.groups[group])
}

// Get returns the garment at a 1-based position within its group.
func (c *Catalog) Get(sel Selection) (*Garment, error) {
	if err := c.Validate(sel); err != nil {
		return nil, err
	}
	return c.groups[sel.Group][sel.Position-1], nil
}

// Validate checks that a selection addresses an existing garment.
func (c *Catalog) Validate(sel Selection) error {
	garments, ok := c.groups[sel.Group]
	if !ok {
		return fmt.Errorf("%w: unknown group %q", ErrInvalidSelection, sel.Group)
	}
	if sel.Position < 1 || sel.Position > len(garments) {
		return fmt.Errorf("%w: %s position %d (available: 1-%d)",
			ErrInvalidSelection, sel.Group, sel.Position, len(garments))
	}
	return nil
}

// All returns every garment, grouped in display order.
func (c *Catalog) All() []*Garment {
	var all []*Garment
	for _, group := range Groups {
		all = append(all, c.groups[group]...)
	}
	return all
}

// Close releases the garment images.
func (c *Catalog) Close() {
	for _, garments := range c.groups {
		for _, g := range garments {
			g.Image.Close()
		}
	}
}

// New builds a catalog from already decoded garments. Positions are
// assigned in slice order. It is meant for tests and embedded assets.
func New(groups map[Group][]gocv.Mat) *Catalog {
	c := &Catalog{groups: make(map[Group][]*Garment, len(groups))}
	for group, images := range groups {
		for i, img := range images {
			c.groups[group] = append(c.groups[group], &Garment{
				Group:    group,
				Position: i + 1,
				Name:     fmt.Sprintf("%s-%d", group, i+1),
				Image:    img,
			})
		}
	}
	return c
}
