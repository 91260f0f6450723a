// Copyright 2026 The bluestreak-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the bluestreakctl binary's on-disk YAML config file.
// The engine library itself is never configured this way — it only ever
// takes bluestreak.Options — this is purely for the operational CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the bluestreakctl config file's top-level shape.
type File struct {
	DBURL             string        `yaml:"db_url"`
	DBName            string        `yaml:"db_name"`
	TimeoutInterval   time.Duration `yaml:"timeout_interval"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	WaitRetryInterval time.Duration `yaml:"wait_retry_interval"`
	MaxFailures       *int          `yaml:"max_failures,omitempty"`
	LogLevel          string        `yaml:"log_level"`
	LogFormat         string        `yaml:"log_format"`
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}
