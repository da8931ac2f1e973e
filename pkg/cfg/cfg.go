package cfg

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/koding/multiconfig"
)

// LoadConfigByDir concatenates all toml files under configDir in lexical
// order and unmarshals them into configPtr. Environment variables prefixed
// with DREMIO_MONITOR_ override file values.
func LoadConfigByDir(configDir string, configPtr interface{}) error {
	var loaders []multiconfig.Loader

	loaders = append(loaders, &multiconfig.TagLoader{})

	entries, err := os.ReadDir(configDir)
	if err != nil {
		return fmt.Errorf("failed to read dir: %s error: %v", configDir, err)
	}

	var tomls []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".toml") {
			tomls = append(tomls, path.Join(configDir, entry.Name()))
		}
	}
	sort.Strings(tomls)

	if len(tomls) == 0 {
		return fmt.Errorf("no toml file found under: %s", configDir)
	}

	s := NewFileScanner()
	for _, file := range tomls {
		s.Read(file)
	}
	if s.Err() != nil {
		return s.Err()
	}

	loaders = append(loaders, &multiconfig.TOMLLoader{Reader: bytes.NewReader(s.Data())})
	loaders = append(loaders, &multiconfig.EnvironmentLoader{Prefix: "DREMIO_MONITOR"})

	m := multiconfig.DefaultLoader{
		Loader:    multiconfig.MultiLoader(loaders...),
		Validator: multiconfig.MultiValidator(&multiconfig.RequiredValidator{}),
	}

	return m.Load(configPtr)
}
