package paths

import (
	"os"
	"path/filepath"
)

const appName = "rulelawyer"

// GetConfigDir returns the user's config directory for rulelawyer.
//
// If the home directory cannot be determined, it falls back to a directory
// under the system temporary directory.
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), "."+appName+"-config"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".config", appName))
}

// GetDataDir returns the directory holding libraries, sessions and logs.
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), "."+appName))
	}
	return filepath.Clean(filepath.Join(homeDir, "."+appName))
}

// SessionsDB returns the session database below dataDir.
func SessionsDB(dataDir string) string {
	return filepath.Join(dataDir, "sessions.db")
}

// DebugLog returns the default debug log file below dataDir.
func DebugLog(dataDir string) string {
	return filepath.Join(dataDir, appName+".debug.log")
}
