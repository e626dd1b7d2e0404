package domain

import "encoding/json"

// Provider family identifiers stored in apis.api_type.
const (
	APITypeCreateTask        = "createTask"
	APITypeVideoGenerations  = "videoGenerations"
	APITypeMergeVideos       = "mergeVideos"
	APITypeCustomAPIGenerate = "customApiGenerate"
	APITypeFalGenerate       = "falGenerate"
	APITypePrediction        = "prediction"
	APITypePredictionAlias   = "predictionGenerate"
	APITypeKlingGenerate     = "klingGenerate"
	APITypeViduGenerate      = "viduGenerate"
	APITypeImageInstant      = "imageInstantGeneration"
)

// ModelConfig is the static configuration of a selectable model.
type ModelConfig struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	GenerationType string         `json:"generation_type"`
	API            ProviderConfig `json:"api"`
}

// ProviderConfig is the apis row a model dispatches through.
type ProviderConfig struct {
	ID        string `json:"id"`
	APIType   string `json:"api_type"`
	APIURL    string `json:"api_url"`
	PollURL   string `json:"poll_url"`
	ModelName string `json:"model_name"`
	// AuthScheme selects between vendors sharing a family, e.g. "Key" for
	// the falGenerate vendor that uses key auth and request_id task ids.
	AuthScheme string          `json:"auth_scheme,omitempty"`
	Pricing    json.RawMessage `json:"pricing,omitempty"`
	Credential Credential      `json:"credential"`
}

// Credential is a provider API key; Secret is only used by families that sign
// short-lived tokens.
type Credential struct {
	Key    string `json:"key"`
	Secret string `json:"secret,omitempty"`
}
