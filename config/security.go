package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/openDAQ/openDAQ-sub014/errors"
)

// Limits applied to configuration input.
const (
	maxConfigSize = 1 << 20 // config files are small; anything larger is a mistake
	maxJSONDepth  = 32
	maxEnvVarLen  = 4096
	maxPathLen    = 4096
)

type fileFormat int

const (
	formatJSON fileFormat = iota
	formatYAML
)

// formatOf picks the codec from the file extension.
func formatOf(path string) (fileFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return 0, errors.Invalidf(errors.ErrInvalidConfig, "Config", "formatOf",
			"unsupported config file %q, want .json, .yaml or .yml", filepath.Base(path))
	}
}

// checkPath rejects overlong paths, relative paths escaping the working directory
// and unknown extensions.
func checkPath(path string) (fileFormat, error) {
	if path == "" {
		return 0, errors.WrapInvalid(errors.ErrMissingConfig, "Config", "checkPath", "path check")
	}
	if len(path) > maxPathLen {
		return 0, errors.Invalidf(errors.ErrInvalidConfig, "Config", "checkPath",
			"path length %d exceeds %d", len(path), maxPathLen)
	}
	if !filepath.IsAbs(path) {
		rel := filepath.Clean(path)
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return 0, errors.Invalidf(errors.ErrInvalidConfig, "Config", "checkPath",
				"%s resolves outside the working directory", path)
		}
	}
	return formatOf(path)
}

// readConfigFile reads a regular file of bounded size.
func readConfigFile(path string) ([]byte, fileFormat, error) {
	format, err := checkPath(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "Config", "readConfigFile", "stat")
	}
	if !info.Mode().IsRegular() {
		return nil, 0, errors.Invalidf(errors.ErrInvalidConfig, "Config", "readConfigFile",
			"%s is not a regular file", path)
	}
	if info.Size() > maxConfigSize {
		return nil, 0, errors.Invalidf(errors.ErrInvalidConfig, "Config", "readConfigFile",
			"%d bytes exceeds %d", info.Size(), maxConfigSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "Config", "readConfigFile", "read")
	}
	return data, format, nil
}

// writeConfigFile writes data readable by the owner only.
func writeConfigFile(path string, data []byte) error {
	if _, err := checkPath(path); err != nil {
		return err
	}
	if len(data) > maxConfigSize {
		return errors.Invalidf(errors.ErrInvalidConfig, "Config", "writeConfigFile",
			"%d bytes exceeds %d", len(data), maxConfigSize)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "Config", "writeConfigFile", "write")
	}
	return nil
}

func checkEnvValue(key, value string) error {
	if len(value) > maxEnvVarLen {
		return errors.Invalidf(errors.ErrInvalidConfig, "Loader", "applyEnvOverrides",
			"%s is %d bytes, limit %d", key, len(value), maxEnvVarLen)
	}
	if strings.ContainsRune(value, 0) {
		return errors.Invalidf(errors.ErrInvalidConfig, "Loader", "applyEnvOverrides",
			"%s contains a NUL byte", key)
	}
	return nil
}

// checkJSONDepth walks the token stream and fails once objects or arrays nest
// deeper than maxJSONDepth.
func checkJSONDepth(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
				"Loader", "checkJSONDepth", "tokenize")
		}
		delim, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		switch delim {
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return errors.Invalidf(errors.ErrInvalidConfig, "Loader", "checkJSONDepth",
					"nesting exceeds %d levels", maxJSONDepth)
			}
		case '}', ']':
			depth--
		}
	}
}
