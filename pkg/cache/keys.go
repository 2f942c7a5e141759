package cache

import (
	"fmt"
	"strings"
)

// Keyer generates cache keys for each pipeline stage.
type Keyer interface {
	// TxKey is the key for a block's raw transaction sizes.
	TxKey(height int64) string

	// LayoutKey is the key for a packing computed from a transaction list.
	LayoutKey(txHash string, opts LayoutKeyOpts) string

	// MarkupKey is the key for markup emitted from a packing.
	MarkupKey(layoutHash string, opts MarkupKeyOpts) string
}

// LayoutKeyOpts holds the options that change a packing.
type LayoutKeyOpts struct {
	Width int `json:"width"`
}

// MarkupKeyOpts holds the options that change emitted markup.
type MarkupKeyOpts struct {
	Scale       float64 `json:"scale"`
	Color       string  `json:"color"`
	Seed        string  `json:"seed"`
	AnimChance  float64 `json:"anim_chance"`
	ModelSrc    string  `json:"model_src,omitempty"`
	ModelSize   int     `json:"model_size,omitempty"`
	ModelChance float64 `json:"model_chance,omitempty"`
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// TxKey returns "tx:<height>".
func (DefaultKeyer) TxKey(height int64) string {
	return fmt.Sprintf("tx:%d", height)
}

// LayoutKey hashes the transaction hash together with the options.
func (DefaultKeyer) LayoutKey(txHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", txHash, opts)
}

// MarkupKey hashes the layout hash together with the options.
func (DefaultKeyer) MarkupKey(layoutHash string, opts MarkupKeyOpts) string {
	return hashKey("markup", layoutHash, opts)
}

// KeyType returns the stage prefix of a key ("tx", "layout", "markup"),
// used to label cache metrics. Scoped prefixes are skipped.
func KeyType(key string) string {
	for _, part := range strings.Split(key, ":") {
		switch part {
		case "tx", "layout", "markup":
			return part
		}
	}
	return "other"
}
