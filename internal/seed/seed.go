// Package seed は初回起動時に投入するデータを提供する。
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hitoshi/brandhub/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Default は埋め込みのシードデータを返す。呼び出しごとに新しいDocumentを生成する。
func Default() (*model.Document, error) {
	return Parse(defaultSeed)
}

// Load はpathのYAMLファイルからシードデータを読み込む。pathが空の場合はDefaultを返す。
func Load(path string) (*model.Document, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse はYAMLをDocumentに変換する。
// キーはJSONドキュメントと同じcamelCaseで記述する。
func Parse(data []byte) (*model.Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}

	// JSONタグをそのまま使うため、一度JSONを経由する
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode seed: %w", err)
	}
	doc := &model.Document{}
	if err := json.Unmarshal(encoded, doc); err != nil {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}

	if doc.Subscribers == nil {
		doc.Subscribers = []model.Subscriber{}
	}
	if doc.Posts == nil {
		doc.Posts = []model.Post{}
	}
	for i := range doc.Subscribers {
		doc.Subscribers[i].Email = model.NormalizeEmail(doc.Subscribers[i].Email)
	}
	for i := range doc.Posts {
		if doc.Posts[i].Tags == nil {
			doc.Posts[i].Tags = []string{}
		}
	}
	return doc, nil
}
