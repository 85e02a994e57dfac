package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adlift/adlift/pkg/batch"
	"github.com/adlift/adlift/pkg/storage"
)

// campaignBrief is the subset of a brief file this tool interprets.
// Everything else passes through untouched.
type campaignBrief struct {
	CampaignName string `json:"campaign_name"`
}

// newPipeline builds the per-campaign work function: validate the brief,
// archive it through the backend and record run metadata next to it.
// The heavier creative stages run elsewhere and pick the archive up.
func newPipeline(b storage.Backend) batch.PipelineFunc {
	return func(ctx context.Context, briefPath string) error {
		data, err := os.ReadFile(briefPath)
		if err != nil {
			return fmt.Errorf("read brief: %w", err)
		}
		var brief campaignBrief
		if err := json.Unmarshal(data, &brief); err != nil {
			return fmt.Errorf("brief is not valid JSON: %w", err)
		}
		name := brief.CampaignName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(briefPath), filepath.Ext(briefPath))
		}

		briefKey := fmt.Sprintf("campaigns/%s/brief.json", name)
		if !b.Save(ctx, bytes.NewReader(data), briefKey) {
			return fmt.Errorf("archive brief for campaign %s", name)
		}

		meta := map[string]any{
			"campaign":     name,
			"source_path":  briefPath,
			"processed_at": time.Now().UTC().Format(time.RFC3339),
			"provider":     b.Provider(),
		}
		metaKey := fmt.Sprintf("campaigns/%s/metadata.json", name)
		if !storage.SaveJSON(ctx, b, meta, metaKey) {
			return fmt.Errorf("write metadata for campaign %s", name)
		}
		return nil
	}
}
