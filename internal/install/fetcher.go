// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/flybywiresim/fragmenter/internal/transfer"
	"github.com/flybywiresim/fragmenter/pkg/manifest"
)

// manifestFetcher implements plan.Fetcher against a live distribution
// server: GET <source>/modules.json, optionally cache-busted.
type manifestFetcher struct {
	client    *transfer.Client
	source    string
	cacheBust bool
}

func (f manifestFetcher) FetchDistributionManifest(ctx context.Context) (*manifest.DistributionManifest, error) {
	url := strings.TrimRight(f.source, "/") + "/modules.json"
	if f.cacheBust {
		url += fmt.Sprintf("?cache=%d", rand.Int63()) //nolint:gosec // cache-busting query param, not a security control
	}

	data, err := f.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	var dist manifest.DistributionManifest
	if err := json.Unmarshal(data, &dist); err != nil {
		return nil, fmt.Errorf("decoding distribution manifest: %w", err)
	}
	return &dist, nil
}
