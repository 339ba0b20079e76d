package ledger

import (
	"fmt"
	"os"
	"strings"

	"boledger/internal/backoffice"
	"boledger/internal/configutil"
)

const (
	EnvUsername           = "BO_USERNAME"
	EnvPassword           = "BO_PASSWORD"
	EnvSourceSheet        = "BO_SOURCE_SHEET"
	EnvServiceAccountFile = "GOOGLE_SERVICE_ACCOUNT_FILE"
	EnvServiceAccountJSON = "GOOGLE_SERVICE_ACCOUNT_JSON"
)

// Secrets never live in the config file, they come from the environment (or .env).
type Secrets struct {
	Credentials        backoffice.Credentials
	SourceSheet        string
	ServiceAccountFile string
	ServiceAccountJSON string
}

func LoadSecrets() (Secrets, error) {
	values, err := configutil.RequireEnv(EnvUsername, EnvPassword, EnvSourceSheet)
	if err != nil {
		return Secrets{}, err
	}
	secrets := Secrets{
		Credentials: backoffice.Credentials{
			Username: values[EnvUsername],
			Password: values[EnvPassword],
		},
		SourceSheet:        values[EnvSourceSheet],
		ServiceAccountFile: strings.TrimSpace(os.Getenv(EnvServiceAccountFile)),
		ServiceAccountJSON: strings.TrimSpace(os.Getenv(EnvServiceAccountJSON)),
	}
	if secrets.ServiceAccountFile == "" && secrets.ServiceAccountJSON == "" {
		return Secrets{}, fmt.Errorf("missing required environment variables: one of %s, %s", EnvServiceAccountFile, EnvServiceAccountJSON)
	}
	return secrets, nil
}
