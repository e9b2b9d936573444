package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "codelion"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage codelion configuration.

Running bare 'codelion config' is the same as 'codelion config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# codelion configuration
# See: codelion config show (for effective values and sources)
# Every key can be overridden with CODELION_<KEY>, dots replaced by
# underscores (e.g. CODELION_GEMINI_API_KEY).

# State/data directory (default: ~/.config/codelion)
# state_dir: {{ .StateDir }}

# SQLite database path
# db_path: {{ .DBPath }}

# HTTP port for 'codelion serve'
port: {{ .Port }}

# Public URL of this server. Used for the OAuth redirect and as the
# webhook target when connecting repositories. Leave empty for local use.
base_url: "{{ .BaseURL }}"

github:
  # OAuth app credentials for dashboard sign-in
  client_id: ""
  client_secret: ""
  # Token used to read pull requests, manage webhooks and post comments
  token: ""
  # Secret for X-Hub-Signature-256 verification (empty disables it)
  webhook_secret: ""
  api_url: "{{ .GitHubAPIURL }}"

gemini:
  api_key: ""
  model: "{{ .GeminiModel }}"

anthropic:
  api_key: ""
  model: "{{ .AnthropicModel }}"

llm:
  # gemini, anthropic, or empty to use whichever has a key (gemini first)
  provider: "{{ .LLMProvider }}"

review:
  # Concurrent agent runs per pull request
  max_concurrency: {{ .MaxConcurrency }}
  # Post findings with a line number back to the pull request
  post_comments: {{ .PostComments }}

dashboard:
  # Show the built-in sample reviews instead of the database
  demo: {{ .DashboardDemo }}

log:
  # debug, info, warn, error
  level: "{{ .LogLevel }}"
  # text or json
  format: "{{ .LogFormat }}"
`

type configTemplateData struct {
	StateDir       string
	DBPath         string
	Port           int
	BaseURL        string
	GitHubAPIURL   string
	GeminiModel    string
	AnthropicModel string
	LLMProvider    string
	MaxConcurrency int
	PostComments   bool
	DashboardDemo  bool
	LogLevel       string
	LogFormat      string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Secrets are never copied into the file from the environment.
	data := configTemplateData{
		StateDir:       viper.GetString("state_dir"),
		DBPath:         viper.GetString("db_path"),
		Port:           viper.GetInt("port"),
		BaseURL:        viper.GetString("base_url"),
		GitHubAPIURL:   viper.GetString("github.api_url"),
		GeminiModel:    viper.GetString("gemini.model"),
		AnthropicModel: viper.GetString("anthropic.model"),
		LLMProvider:    viper.GetString("llm.provider"),
		MaxConcurrency: viper.GetInt("review.max_concurrency"),
		PostComments:   viper.GetBool("review.post_comments"),
		DashboardDemo:  viper.GetBool("dashboard.demo"),
		LogLevel:       viper.GetString("log.level"),
		LogFormat:      viper.GetString("log.format"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeys lists the keys shown by 'config show', in display order.
var configKeys = []string{
	"state_dir",
	"db_path",
	"port",
	"base_url",
	"github.client_id",
	"github.client_secret",
	"github.token",
	"github.webhook_secret",
	"github.api_url",
	"gemini.api_key",
	"gemini.model",
	"anthropic.api_key",
	"anthropic.model",
	"llm.provider",
	"review.max_concurrency",
	"review.post_comments",
	"dashboard.demo",
	"log.level",
	"log.format",
}

// envVar returns the environment variable that overrides key.
func envVar(key string) string {
	return "CODELION_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func isSecret(key string) bool {
	for _, suffix := range []string{"api_key", "client_secret", "token", "webhook_secret"} {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// maskValue hides all but the last four characters of a secret.
func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		cfgPath = used
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	fileValues := readConfigFileValues(cfgPath)

	for _, key := range configKeys {
		val := fmt.Sprint(viper.Get(key))
		if isSecret(key) {
			val = maskValue(viper.GetString(key))
		}
		fmt.Fprintf(ui.Out, "  %-24s %v  %s\n", key, val, detectSource(key, envVar(key), fileValues))
	}
	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'codelion config init' first)", cfgPath)
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
