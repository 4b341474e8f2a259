// CLAUDE:SUMMARY Runtime settings (retention, filters, capture priority) persisted as settings.json in the base dir.
package keeper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/clipkeeper/capture"
)

// SettingsFileName is the runtime settings file inside the base directory.
const SettingsFileName = "settings.json"

// Settings is the runtime-tunable behaviour of the pipeline. Unlike Config it
// can change while the daemon runs (UpdateSettings) and survives restarts as
// a JSON file beside the database.
type Settings struct {
	// MinTextLength drops text captures shorter than this many runes.
	MinTextLength int `json:"min_text_length"`

	// MaxImageSize drops image captures larger than this many bytes.
	MaxImageSize int64 `json:"max_image_size"`

	// RetentionDays ages records out; 0 disables the age rule.
	RetentionDays int `json:"retention_days"`

	// MaxEntries caps the record count; 0 disables the count rule.
	MaxEntries int `json:"max_entries"`

	// SkipSensitive vetoes captures that look like credentials, card
	// numbers, or similar secrets.
	SkipSensitive bool `json:"skip_sensitive"`

	// ShowNotifications asks the frontend to announce saves. The daemon
	// itself only carries the flag through events.
	ShowNotifications bool `json:"show_notifications"`

	// OrganizeByDate partitions blob files into per-date subdirectories.
	OrganizeByDate bool `json:"organize_by_date"`

	// CapturePriority orders the clipboard formats tried on each change;
	// the first available one wins. Empty means the built-in order.
	CapturePriority []string `json:"capture_priority,omitempty"`
}

// DefaultSettings returns the settings used when no settings.json exists.
func DefaultSettings() Settings {
	return Settings{
		MinTextLength:     1,
		MaxImageSize:      10 * 1024 * 1024,
		RetentionDays:     30,
		MaxEntries:        1000,
		SkipSensitive:     true,
		ShowNotifications: true,
		OrganizeByDate:    true,
	}
}

// normalize clamps out-of-range values to sane ones instead of failing, so a
// hand-edited settings.json can never wedge the daemon.
func (s *Settings) normalize() {
	if s.MinTextLength < 1 {
		s.MinTextLength = 1
	}
	if s.MaxImageSize <= 0 {
		s.MaxImageSize = 10 * 1024 * 1024
	}
	if s.RetentionDays < 0 {
		s.RetentionDays = 0
	}
	if s.MaxEntries < 0 {
		s.MaxEntries = 0
	}
	s.CapturePriority = validFormats(s.CapturePriority)
}

// validFormats keeps only recognised format names, preserving order.
func validFormats(names []string) []string {
	known := map[string]bool{
		string(capture.FormatText):     true,
		string(capture.FormatRichText): true,
		string(capture.FormatImage):    true,
		string(capture.FormatFiles):    true,
	}
	var out []string
	for _, n := range names {
		if known[n] {
			out = append(out, n)
		}
	}
	return out
}

// Priority converts CapturePriority into capture formats, falling back to
// the default order when unset. Both the watcher and the one-shot capture
// mode consult it.
func (s Settings) Priority() []capture.Format {
	if len(s.CapturePriority) == 0 {
		return capture.DefaultPriority
	}
	out := make([]capture.Format, 0, len(s.CapturePriority))
	for _, n := range s.CapturePriority {
		out = append(out, capture.Format(n))
	}
	return out
}

// LoadSettings reads settings.json from baseDir, returning defaults when the
// file does not exist.
func LoadSettings(baseDir string) (Settings, error) {
	path := filepath.Join(baseDir, SettingsFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("keeper: read settings: %w", err)
	}
	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("keeper: parse settings: %w", err)
	}
	s.normalize()
	return s, nil
}

// SaveSettings writes settings.json atomically (temp file + rename).
func SaveSettings(baseDir string, s Settings) error {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return fmt.Errorf("keeper: save settings: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("keeper: encode settings: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(baseDir, ".settings-*")
	if err != nil {
		return fmt.Errorf("keeper: save settings: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("keeper: save settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("keeper: save settings: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(baseDir, SettingsFileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("keeper: save settings: %w", err)
	}
	return nil
}
