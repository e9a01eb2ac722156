// Package config loads the YAML configuration file the leechd CLI reads its
// defaults from, following the same load-or-default pattern the teacher used
// for its own config file.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every knob that can be set outside of a per-invocation CLI flag.
type Config struct {
	Port        int    `yaml:"port"`
	DownloadDir string `yaml:"download_dir"`
	UploadBPS   int64  `yaml:"upload_bytes_per_sec"`
	ResumeDB    string `yaml:"resume_db"`
}

// Default is used whenever no config file is given, or a given file is
// missing keys.
var Default = Config{
	Port:        6881,
	DownloadDir: ".",
	UploadBPS:   0, // 0 disables rate limiting
	ResumeDB:    "~/.leechd-resume.db",
}

// Load reads filename and overlays it on Default. A missing file is not an
// error: it just means the caller gets Default back unchanged.
func Load(filename string) (*Config, error) {
	c := Default
	b, err := os.ReadFile(filename) // nolint: gosec
	if os.IsNotExist(err) {
		return &c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
