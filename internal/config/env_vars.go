package config

import (
	"fmt"
	"strings"
)

const (
	ClientsSourceFile  = "file"
	ClientsSourceRedis = "redis"
)

type EnvVars struct {
	Port           string `env:"PORT" envDefault:"3000"`
	AppName        string `env:"APP_NAME" envDefault:"Tokenator"`
	Environment    string `env:"ENV" envDefault:"DEV"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	Issuer         string `env:"PROVIDER" envDefault:"http://localhost:3000"`
	PathPrefix     string `env:"PATH_PREFIX" envDefault:"/tokens"`
	ClientsSource  string `env:"CLIENTS_SOURCE" envDefault:"file"`
	ClientsFile    string `env:"CLIENTS_FILE" envDefault:"./clients.json"`
	SigningKeyFile string `env:"SIGNING_KEY_FILE"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Environment
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetIssuer returns the issuer identifier, which includes the path prefix
// (e.g. "https://auth.example.com/tokens").
func (e EnvVars) GetIssuer() string {
	return strings.TrimSuffix(e.Issuer, "/") + e.GetPathPrefix()
}

func (e EnvVars) GetPathPrefix() string {
	prefix := strings.TrimSuffix(e.PathPrefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func (e EnvVars) GetClientsSource() string {
	return e.ClientsSource
}

func (e EnvVars) GetClientsFile() string {
	return e.ClientsFile
}

func (e EnvVars) GetSigningKeyFile() string {
	return e.SigningKeyFile
}
