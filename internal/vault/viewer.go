// -----------------------------------------------------------------------
// Viewer Config - One-time graph display tuning for vault viewers
// -----------------------------------------------------------------------

package vault

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// viewerDir is the hidden settings directory viewers read from the
// vault root.
const viewerDir = ".refnet"

type viewerConfig struct {
	NodeSizeField  string  `json:"node_size_field"`
	NodeColorField string  `json:"node_color_field"`
	LinkDistance   int     `json:"link_distance"`
	ChargeStrength int     `json:"charge_strength"`
	CenterStrength float64 `json:"center_strength"`
	ShowOrphans    bool    `json:"show_orphans"`
	HighlightDepth int     `json:"highlight_depth"`
	LabelThreshold int     `json:"label_threshold"`
}

// EnsureViewerConfig writes .refnet/graph.json with display defaults
// unless the user already customized one.
func (w *Writer) EnsureViewerConfig() error {
	target := filepath.Join(w.path, viewerDir, "graph.json")
	if _, err := os.Stat(target); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Join(w.path, viewerDir), 0755); err != nil {
		return err
	}

	cfg := viewerConfig{
		NodeSizeField:  "citation_count",
		NodeColorField: "year",
		LinkDistance:   120,
		ChargeStrength: -80,
		CenterStrength: 0.05,
		ShowOrphans:    false,
		HighlightDepth: 1,
		LabelThreshold: 10,
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return w.writeAtomic(filepath.Join(viewerDir, "graph.json"), append(data, '\n'))
}
