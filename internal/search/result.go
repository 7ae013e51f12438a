package search

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/viddup/internal/monitoring"
)

// Save writes groups to path as YAML.
func Save(path string, groups []Group) error {
	out, err := yaml.Marshal(groups)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// Load reads groups back from path. Paths are re-projected as stored.
func Load(path string) ([]Group, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var groups []Group
	if err := yaml.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("decode results %s: %w", path, err)
	}
	return groups, nil
}

// Reproject filters loaded groups against the current state of the
// world: members whose file is no longer readable are dropped, as are
// members with no non-whitelisted partner left. Groups that fall below
// two members disappear.
func Reproject(groups []Group, wl WhitelistChecker) ([]Group, error) {
	var kept []Group
	for _, g := range groups {
		var readable Group
		for _, d := range g {
			f, err := os.Open(d.File.Name)
			if err != nil {
				monitoring.Warnf("dropping %s from results: %v", d.File.Name, err)
				continue
			}
			f.Close()
			readable = append(readable, d)
		}

		live, err := unWhitelisted(readable, wl)
		if err != nil {
			return nil, err
		}
		if len(live) > 1 {
			kept = append(kept, live)
		}
	}
	return kept, nil
}

// unWhitelisted keeps the members that still form at least one pair not
// covered by the whitelist.
func unWhitelisted(g Group, wl WhitelistChecker) (Group, error) {
	var live Group
	for i, d := range g {
		for j, other := range g {
			if i == j {
				continue
			}
			listed, err := wl.IsWhitelisted(d.File.FID, other.File.FID)
			if err != nil {
				return nil, fmt.Errorf("whitelist check %d/%d: %w", d.File.FID, other.File.FID, err)
			}
			if !listed {
				live = append(live, d)
				break
			}
		}
	}
	return live, nil
}

// Print writes one ffplay invocation per member, groups separated by a
// blank line.
func Print(w io.Writer, groups []Group) error {
	for n, g := range groups {
		if n > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		for _, d := range g {
			if _, err := fmt.Fprintf(w, "ffplay -ss %s '%s'\n", formatOffset(d.Offset), d.File.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// formatOffset renders whole seconds as HH:MM:SS.
func formatOffset(seconds float64) string {
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}
