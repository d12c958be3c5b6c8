// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// FileConfig is the YAML schema. Pointer and empty values mean "not set".
type FileConfig struct {
	Backend struct {
		BaseURL     string `yaml:"baseURL"`
		Timeout     string `yaml:"timeout"`
		StopTimeout string `yaml:"stopTimeout"`
	} `yaml:"backend"`

	Session struct {
		MaxAbsoluteDuration *float64 `yaml:"maxAbsoluteDuration"`
		DefaultIntensity    *int     `yaml:"defaultIntensity"`
		MaxUploadBytes      *int64   `yaml:"maxUploadBytes"`
		CloseGrace          string   `yaml:"closeGrace"`
	} `yaml:"session"`

	API struct {
		ListenAddr     string   `yaml:"listenAddr"`
		RateLimitRPM   *int     `yaml:"rateLimitRPM"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"api"`

	Downloads struct {
		Dir string `yaml:"dir"`
	} `yaml:"downloads"`

	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Log struct {
		Level      string `yaml:"level"`
		Service    string `yaml:"service"`
		File       string `yaml:"file"`
		MaxSizeMB  *int   `yaml:"maxSizeMB"`
		MaxBackups *int   `yaml:"maxBackups"`
		MaxAgeDays *int   `yaml:"maxAgeDays"`
		Compress   *bool  `yaml:"compress"`
	} `yaml:"log"`

	Telemetry struct {
		Enabled      *bool    `yaml:"enabled"`
		Exporter     string   `yaml:"exporter"`
		Endpoint     string   `yaml:"endpoint"`
		Environment  string   `yaml:"environment"`
		SamplingRate *float64 `yaml:"samplingRate"`
	} `yaml:"telemetry"`
}

// LoadFileConfig loads a YAML config file without applying defaults or env overrides.
func LoadFileConfig(path string) (*FileConfig, error) {
	loader := NewLoader(path, "")
	return loader.loadFile(path)
}
