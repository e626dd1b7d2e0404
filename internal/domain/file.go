package domain

import "encoding/json"

// GeneratedFile is a user_files row describing an artifact re-hosted on the
// file-hosting service.
type GeneratedFile struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	FileName      string          `json:"file_name"`
	FilePath      string          `json:"file_path"`
	FileSize      int64           `json:"file_size"`
	FileType      string          `json:"file_type"`
	ZipData       json.RawMessage `json:"zip_data,omitempty"`
	ModelID       string          `json:"model_id,omitempty"`
	GeneratedInfo json.RawMessage `json:"generated_info,omitempty"`
	ThumbnailURL  string          `json:"thumbnail_url,omitempty"`
}
