package env

import (
	"github.com/joho/godotenv"
)

// searchPaths are tried in order, relative to the working directory.
var searchPaths = []string{
	".env",
	"../../.env", // From cmd/fleetward to project root
	"../../../.env",
}

// SetupEnvFile loads the first .env file found into the process environment.
// Variables that are already set win over the file. It returns the path that
// was loaded, or "" when there is none; running without a file is valid.
func SetupEnvFile() string {
	for _, path := range searchPaths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}
