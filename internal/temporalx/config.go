package temporalx

import (
	"os"
	"strings"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string
}

func LoadConfig() Config {
	return Config{
		Address:   strings.TrimSpace(os.Getenv("TEMPORAL_ADDRESS")),
		Namespace: orDefault(os.Getenv("TEMPORAL_NAMESPACE"), "coursebuilder"),
		TaskQueue: orDefault(os.Getenv("TEMPORAL_TASK_QUEUE"), "coursebuilder"),

		ClientCertPath: strings.TrimSpace(os.Getenv("TEMPORAL_CLIENT_CERT_PATH")),
		ClientKeyPath:  strings.TrimSpace(os.Getenv("TEMPORAL_CLIENT_KEY_PATH")),
		ClientCAPath:   strings.TrimSpace(os.Getenv("TEMPORAL_CLIENT_CA_PATH")),
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
