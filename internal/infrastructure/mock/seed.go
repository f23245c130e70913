// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mock

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/linuxfoundation/lfx-v2-subscriber-service/internal/domain/model"
)

// Seed is the YAML document accepted by LoadSeedFile.
//
//	lists:
//	  - {id: 7, cid: news, name: News}
//	fields:
//	  - list_id: 7
//	    fields:
//	      - {key: company, column: custom_field1, type: text}
//	subscribers:
//	  - {cid: abc, list_id: 7, email: jane@example.org, status: active}
//	blacklist:
//	  - spam@example.org
type Seed struct {
	Lists       []model.List       `yaml:"lists"`
	Fields      []model.ListFields `yaml:"fields"`
	Subscribers []model.Subscriber `yaml:"subscribers"`
	Blacklist   []string           `yaml:"blacklist"`
}

// LoadSeed adds every record in seed to the repository.
func (m *MockRepository) LoadSeed(seed *Seed) {
	for i := range seed.Lists {
		m.AddList(&seed.Lists[i])
	}
	for _, lf := range seed.Fields {
		m.AddFields(lf.ListID, lf.Fields)
	}
	for i := range seed.Subscribers {
		m.AddSubscriber(&seed.Subscribers[i])
	}
	for _, email := range seed.Blacklist {
		m.AddBlacklisted(email)
	}
}

// LoadSeedFile reads a YAML seed file into the repository.
func (m *MockRepository) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	m.LoadSeed(&seed)

	slog.Info("mock repository seeded",
		"path", path,
		"lists", len(seed.Lists),
		"subscribers", len(seed.Subscribers),
		"blacklist", len(seed.Blacklist),
	)
	return nil
}
