package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/QTMarketing/cps-sub000/internal/flagx"
	"github.com/QTMarketing/cps-sub000/internal/timex"
)

// JsonConfig is the intermediate DTO used only for reading JSON config
// files. It uses timex.Duration for interval fields, which allows parsing
// both string values such as "15m" and integer nanoseconds. After
// unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	MasterSecret                string         `json:"master_secret"`
	JWTSecret                   string         `json:"jwt_secret"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	StepUpAmountLimitCents      int64          `json:"stepup_amount_limit_cents"`
	AuditRetentionDays          int            `json:"audit_retention_days"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flags into the provided Config. If no file is named, nothing is
// loaded. If the file cannot be read or contains invalid JSON, the function
// panics: a half-applied config is worse than a refusal to start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.MasterSecret = c.MasterSecret
	config.JWTSecret = c.JWTSecret
	config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	config.StepUpAmountLimitCents = c.StepUpAmountLimitCents
	config.AuditRetentionDays = c.AuditRetentionDays
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
