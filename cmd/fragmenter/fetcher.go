// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"

	"github.com/flybywiresim/fragmenter/internal/transfer"
	"github.com/flybywiresim/fragmenter/pkg/manifest"
)

// localManifestFetcher implements plan.Fetcher by reading a distribution
// manifest straight off disk, for the `--local` testing mode that
// exercises `fragmenter plan` against a manifest that hasn't been
// published anywhere yet.
type localManifestFetcher struct {
	path string
}

func (f localManifestFetcher) FetchDistributionManifest(_ context.Context) (*manifest.DistributionManifest, error) {
	return manifest.LoadDistributionManifest(f.path)
}

// httpManifestFetcher implements plan.Fetcher over the real transfer
// client, for `fragmenter plan` run against a live distribution rather
// than a local manifest file.
type httpManifestFetcher struct {
	client *transfer.Client
	source string
}

func newHTTPManifestFetcher(source string) httpManifestFetcher {
	return httpManifestFetcher{client: transfer.NewClient(), source: source}
}

func (f httpManifestFetcher) FetchDistributionManifest(ctx context.Context) (*manifest.DistributionManifest, error) {
	data, err := f.client.Get(ctx, f.source+"/modules.json")
	if err != nil {
		return nil, err
	}
	var dist manifest.DistributionManifest
	if err := json.Unmarshal(data, &dist); err != nil {
		return nil, err
	}
	return &dist, nil
}
