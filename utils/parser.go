package utils

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/tkanos/gonfig"
	"github.com/vitwit/arkpay/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ParseConfig parses and validates a GatewayConfig from JSON. Missing
// fields take their defaults.
func ParseConfig(data []byte) (*types.GatewayConfig, error) {
	var config types.GatewayConfig

	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &types.GatewayError{
			Code:    types.ErrConfigError,
			Message: "failed to parse gateway config",
			Err:     err,
		}
	}

	return finishConfig(&config)
}

// LoadConfig reads a JSON config file. Environment variables named by the
// fields' env tags override values from the file.
func LoadConfig(path string) (*types.GatewayConfig, error) {
	var config types.GatewayConfig

	if err := gonfig.GetConf(path, &config); err != nil {
		return nil, &types.GatewayError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("failed to read config file %s", path),
			Err:     err,
		}
	}

	return finishConfig(&config)
}

func finishConfig(config *types.GatewayConfig) (*types.GatewayConfig, error) {
	config.ApplyDefaults()

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidateConfig checks config against its validate tags.
func ValidateConfig(config *types.GatewayConfig) error {
	if err := validate.Struct(config); err != nil {
		return &types.GatewayError{
			Code:    types.ErrConfigError,
			Message: "config validation failed",
			Err:     err,
		}
	}
	return nil
}

// SerializeSession converts a session snapshot to JSON
func SerializeSession(session *types.Session) ([]byte, error) {
	return json.Marshal(session)
}

// NormalizeJSON formats JSON with consistent indentation
func NormalizeJSON(data interface{}) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}
