// Package organize places run artifacts on disk and groups analysed pages into activities.
package organize

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/photo-panels/constants"
)

// Layout resolves every artifact location under one output root.
type Layout struct {
	Root        string
	UnifiedName string
}

func NewLayout(root, unifiedName string) Layout {
	if unifiedName == "" {
		unifiedName = "paneles_fotograficos_unificados.pdf"
	}
	return Layout{Root: root, UnifiedName: unifiedName}
}

func (l Layout) PageDir(page int) string {
	return filepath.Join(l.Root, "pages", fmt.Sprintf("page_%03d", page))
}

func (l Layout) ImagePath(page int, pos constants.Position) string {
	return filepath.Join(l.PageDir(page), pos.FileName())
}

func (l Layout) TextPath(page int) string {
	return filepath.Join(l.PageDir(page), "text.md")
}

func (l Layout) AnalysisPath(page int) string {
	return filepath.Join(l.PageDir(page), "analysis.json")
}

func (l Layout) SummaryPath() string {
	return filepath.Join(l.Root, "summary.json")
}

func (l Layout) XLSXPath() string {
	return filepath.Join(l.Root, "summary.xlsx")
}

func (l Layout) ActivitiesDir() string {
	return filepath.Join(l.Root, "activities")
}

// ActivityPath names an activity document by its 1-based order and a slug of its name.
func (l Layout) ActivityPath(order int, name string) string {
	return filepath.Join(l.ActivitiesDir(), fmt.Sprintf("%02d_%s.pdf", order, Slug(name)))
}

func (l Layout) UnifiedPath() string {
	return filepath.Join(l.Root, "unified", l.UnifiedName)
}

// Prepare creates the root, removing previous run output first when clean is set.
func (l Layout) Prepare(clean bool) error {
	if l.Root == "" {
		return fmt.Errorf("empty output root")
	}
	if clean {
		for _, sub := range []string{"pages", "activities", "unified"} {
			if err := os.RemoveAll(filepath.Join(l.Root, sub)); err != nil {
				return fmt.Errorf("clean %s: %w", sub, err)
			}
		}
		for _, f := range []string{l.SummaryPath(), l.XLSXPath()} {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("clean %s: %w", f, err)
			}
		}
	}
	return os.MkdirAll(l.Root, 0o755)
}

var (
	reNonSlug = regexp.MustCompile(`[^a-z0-9]+`)
	accents   = strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
		"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u", "Ñ", "n",
	)
)

// Slug makes a file-name-safe lowercase name.
func Slug(name string) string {
	s := strings.ToLower(accents.Replace(name))
	s = strings.Trim(reNonSlug.ReplaceAllString(s, "_"), "_")
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "_")
	}
	if s == "" {
		s = "actividad"
	}
	return s
}

// WriteFileAtomic writes through a temp file in the same directory and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
