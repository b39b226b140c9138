package cmd

import (
	"time"

	statex "github.com/tanpawarit/chative-shop-assistant/agent/state"
)

type AppConfig struct {
	Addr            string         `envconfig:"ADDR" default:":8000"`
	MaxRounds       int            `envconfig:"MAX_ROUNDS" split_words:"true" default:"8"`
	DefaultScope    string         `envconfig:"DEFAULT_SCOPE" split_words:"true" default:"general"`
	HistoryBackend  statex.Backend `envconfig:"HISTORY_BACKEND" split_words:"true" default:"memory"`
	StaffToken      string         `envconfig:"STAFF_TOKEN" split_words:"true"`
	ShutdownTimeout time.Duration  `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"10s"`
}

// DataConfig locates the catalogue, sales history, forecast artifact and
// vector snapshot. Relative paths resolve against the working directory.
type DataConfig struct {
	CatalogPath  string `envconfig:"CATALOG_PATH" split_words:"true" default:"data/products.csv"`
	SalesPath    string `envconfig:"SALES_PATH" split_words:"true" default:"data/sales_history.csv"`
	VectorDBPath string `envconfig:"VECTOR_DB_PATH" split_words:"true" default:"data/vectordb/products.db"`
	ModelPath    string `envconfig:"MODEL_PATH" split_words:"true"`
	TopK         int    `envconfig:"TOP_K" split_words:"true" default:"5"`
	Embedder     string `envconfig:"EMBEDDER" default:"tfidf"`
}
