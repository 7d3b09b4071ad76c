package shareconfig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads settings from path into s. Files ending in .yml or .yaml are
// YAML; anything else is read as a mission file and the block
// "ProcessConfig = <appName>" is used.
func Load(path, appName string, s *Settings) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return LoadYAML(f, s)
	default:
		return LoadMission(f, appName, s)
	}
}

// LoadYAML decodes YAML settings from r into s
func LoadYAML(r io.Reader, s *Settings) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && err != io.EOF {
		return fmt.Errorf("decode yaml config: %w", err)
	}
	return nil
}

// LoadMission reads the "ProcessConfig = appName { ... }" block of a mission
// file. Output and Input may repeat; other keys are scalars. Keys are case
// insensitive and "//" starts a comment.
func LoadMission(r io.Reader, appName string, s *Settings) error {
	scanner := bufio.NewScanner(r)

	var (
		lineNo  int
		inBlock bool
		opened  bool
		found   bool
	)
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		if !inBlock {
			key, value, ok := splitAssignment(line)
			if ok && strings.EqualFold(key, "ProcessConfig") && value == appName {
				inBlock, opened, found = true, false, true
			}
			continue
		}

		if !opened {
			if line != "{" {
				return fmt.Errorf("mission line %d: expected '{' after ProcessConfig = %s", lineNo, appName)
			}
			opened = true
			continue
		}
		if line == "}" {
			inBlock = false
			continue
		}

		key, value, ok := splitAssignment(line)
		if !ok {
			return fmt.Errorf("mission line %d: expected key = value, got %q", lineNo, line)
		}
		if err := s.setMissionValue(key, value); err != nil {
			return fmt.Errorf("mission line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read mission file: %w", err)
	}
	if !found {
		return fmt.Errorf("no ProcessConfig block for %s", appName)
	}
	if inBlock {
		return fmt.Errorf("unterminated ProcessConfig block for %s", appName)
	}
	return nil
}

func (s *Settings) setMissionValue(key, value string) error {
	switch strings.ToLower(key) {
	case "output":
		s.Outputs = append(s.Outputs, value)
	case "input":
		s.Inputs = append(s.Inputs, value)
	case "multicast_address":
		s.MulticastAddress = value
	case "multicast_base_port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidBasePort, value)
		}
		s.MulticastBasePort = port
	case "verbose":
		s.Verbose = parseFlag(value)
	case "apptick":
		hz, err := strconv.ParseFloat(value, 64)
		if err != nil || hz <= 0 {
			return fmt.Errorf("AppTick must be a positive number, got %q", value)
		}
		s.AppTick = time.Duration(float64(time.Second) / hz)
	case "http_listen":
		s.HTTPListen = value
	case "grpc_health_listen":
		s.GRPCHealthListen = value
	case "jwt_secret":
		s.JWTSecret = value
	case "no_auth":
		s.NoAuth = parseFlag(value)
	case "log_level":
		s.Log.Level = value
	case "log_format":
		s.Log.Format = value
	case "log_file":
		s.Log.File = value
	}
	return nil
}

func splitAssignment(line string) (string, string, bool) {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), true
}

func stripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func parseFlag(v string) bool {
	switch strings.ToLower(v) {
	case "true", "yes", "1", "on":
		return true
	}
	return false
}
