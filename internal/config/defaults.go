package config

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"
	DefaultStreamAddr  = "localhost:8765"

	DefaultRateLimitPerMinute = 60

	DefaultProvider      = "mock"
	DefaultMaxIterations = 10
	DefaultAgentTimeout  = 600 // seconds

	DefaultProjectPath = "~/fpga_projects"
	DefaultTempDir     = "~/.arixa/temp"

	DefaultMaxPromptLength = 8000

	DefaultElasticsearchPort       = 9200
	DefaultElasticsearchScheme     = "http"
	DefaultElasticsearchMaxRetries = 3
	DefaultElasticsearchAuditIndex = "arixa-tool-audit"

	DefaultBigQueryDataset = "arixa"
	DefaultBigQueryTable   = "tool_audit"
)

// DefaultSensitiveKeys are tool argument names masked before auditing.
var DefaultSensitiveKeys = []string{
	"password", "secret", "token", "api_key", "access_key", "private_key", "license",
}
