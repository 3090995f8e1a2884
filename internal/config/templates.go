package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "config":
		return configTemplate, nil
	case "schema":
		return schemaTemplate, nil
	default:
		return "", fmt.Errorf("unknown template kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const configTemplate = `schemas = ["schemas.toml"]

[limits]
max_depth = 64
max_message_bytes = 67108864

[server]
addr = ":9400"
cors_origins = ["http://localhost:3000"]
store_key_file = "store.key"
# tls_cert_file = "server.crt"
# tls_key_file = "server.key"

[[server.tokens]]
token = "change-me"
subject = "user-123"

[[server.tokens]]
token = "change-me-admin"
subject = "*"
`

const schemaTemplate = `[[message]]
name = "Person"

  [[message.field]]
  name = "name"
  number = 1
  kind = "string"
  cardinality = "required"

  [[message.field]]
  name = "age"
  number = 2
  kind = "int64"

  [[message.field]]
  name = "tags"
  number = 3
  kind = "string"
  cardinality = "repeated"
`
