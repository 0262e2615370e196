package config

// Default configuration values.
const (
	DefaultManifestPath = "target/manifest.json"
	DefaultModelsDir    = "models"
	DefaultStateFile    = ".leapdiff/state.db"
	DefaultOldRevision  = "main"
	DefaultMatcher      = "substring"
	DefaultOutput       = "text"
	DefaultOutDir       = "."
)

// Defaults returns the default configuration map loaded below file, env and
// flag providers.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"manifest":       DefaultManifestPath,
		"models_dir":     DefaultModelsDir,
		"state_path":     DefaultStateFile,
		"old_revision":   DefaultOldRevision,
		"case_sensitive": false,
		"matcher":        DefaultMatcher,
		"output":         DefaultOutput,
		"out_dir":        DefaultOutDir,
		"verbose":        false,
	}
}
