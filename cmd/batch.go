package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type batchFile struct {
	URLs []string `yaml:"urls"`
}

// ReadDownloadList loads root URLs from a YAML file of the form:
//
//	urls:
//	  - https://example.com/a/abc123
//	  - https://example.com/gallery/user
func ReadDownloadList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading URL list: %w", err)
	}
	var batch batchFile
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parsing URL list: %w", err)
	}
	var urls []string
	for _, raw := range batch.URLs {
		if raw == "" {
			continue
		}
		urls = append(urls, raw)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs found in %s", path)
	}
	return urls, nil
}
