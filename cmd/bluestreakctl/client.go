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

package main

import (
	"context"

	"github.com/ferromir/bluestreak-go"
	bsconfig "github.com/ferromir/bluestreak-go/internal/config"
	blog "github.com/ferromir/bluestreak-go/internal/log"
)

// buildClient loads configPath (if non-empty) and constructs an
// initialized bluestreak.Client from it, layering any additional opts on
// top of the file-derived options.
func buildClient(ctx context.Context, configPath string, opts ...bluestreak.Option) (*bluestreak.Client, error) {
	var fileOpts []bluestreak.Option

	if configPath != "" {
		f, err := bsconfig.Load(configPath)
		if err != nil {
			return nil, err
		}

		if f.DBURL != "" {
			fileOpts = append(fileOpts, bluestreak.WithDBURL(f.DBURL))
		}
		if f.DBName != "" {
			fileOpts = append(fileOpts, bluestreak.WithDBName(f.DBName))
		}
		if f.TimeoutInterval > 0 {
			fileOpts = append(fileOpts, bluestreak.WithTimeoutInterval(f.TimeoutInterval))
		}
		if f.PollInterval > 0 {
			fileOpts = append(fileOpts, bluestreak.WithPollInterval(f.PollInterval))
		}
		if f.WaitRetryInterval > 0 {
			fileOpts = append(fileOpts, bluestreak.WithWaitRetryInterval(f.WaitRetryInterval))
		}
		if f.MaxFailures != nil {
			fileOpts = append(fileOpts, bluestreak.WithMaxFailures(*f.MaxFailures))
		}

		logCfg := blog.FromEnv()
		if f.LogLevel != "" {
			logCfg.Level = f.LogLevel
		}
		if f.LogFormat != "" {
			logCfg.Format = blog.Format(f.LogFormat)
		}
		fileOpts = append(fileOpts, bluestreak.WithLogger(blog.New(logCfg)))
	}

	client := bluestreak.New(append(fileOpts, opts...)...)
	if err := client.Init(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
