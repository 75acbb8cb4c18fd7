package crawler

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed sites/*.yaml
var embeddedSites embed.FS

// LoadSites reads the built-in site definitions, then any *.yaml files in dir.
// Definitions from dir replace built-ins with the same key.
func LoadSites(dir string) (map[string]SiteDefinition, error) {
	sites := make(map[string]SiteDefinition)
	if err := loadSitesFrom(embeddedSites, "sites", sites); err != nil {
		return nil, err
	}
	if dir != "" {
		if err := loadSitesFrom(os.DirFS(dir), ".", sites); err != nil {
			return nil, err
		}
	}
	return sites, nil
}

func loadSitesFrom(fsys fs.FS, dir string, into map[string]SiteDefinition) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read site definitions: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		site, err := ParseSite(data)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Name(), err)
		}
		into[site.Key] = site
	}
	return nil
}

// ParseSite decodes a YAML site definition and fills defaults
func ParseSite(data []byte) (SiteDefinition, error) {
	var site SiteDefinition
	if err := yaml.Unmarshal(data, &site); err != nil {
		return SiteDefinition{}, err
	}
	site.Key = strings.ToLower(strings.TrimSpace(site.Key))
	if site.Key == "" {
		return SiteDefinition{}, fmt.Errorf("site definition has no key")
	}
	if site.Selectors.Item == "" || site.Selectors.Name == "" {
		return SiteDefinition{}, fmt.Errorf("site %s: item and name selectors are required", site.Key)
	}
	if site.PageParam == "" {
		site.PageParam = "page"
	}
	if site.MaxPages <= 0 || site.MaxPages > HTMLMaxPages {
		site.MaxPages = HTMLMaxPages
	}
	if site.PageDelay <= 0 {
		site.PageDelay = HTMLPageDelay
	}
	if site.CategoryDelay <= 0 {
		site.CategoryDelay = HTMLCategoryDelay
	}
	return site, nil
}
