package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "host":
		return hostTemplate, nil
	case "backend":
		return backendTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const hostTemplate = `# BLDR_RUNTIME_ID overrides runtime_id.
runtime_id = ""
endpoint_dir = ""

[devhost]
addr = "127.0.0.1:8719"
cors_origins = []
inject_client = true
max_body_bytes = 8388608
# Required on /metrics and /__bridge/debug when non-empty.
admin_token = ""

[bridge]
eval_timeout = "30s"
endpoint_wait = "10s"
max_frame_bytes = 10485760
dial_max_attempts = 20
dial_initial_delay = "250ms"
dial_max_delay = "5s"
`

const backendTemplate = `# BLDR_RUNTIME_ID overrides runtime_id.
runtime_id = ""
endpoint_dir = ""
root = "."
max_frame_bytes = 10485760
`
