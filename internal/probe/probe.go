// Package probe checks from the client side whether devices answer
// discovery searches on the local network.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/huin/goupnp/httpu"
	"github.com/huin/goupnp/ssdp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/fauxhub/internal/logging"
)

// DefaultTarget asks every device to answer
const DefaultTarget = ssdp.SSDPAll

// DefaultWait is how long responders get to answer
const DefaultWait = 3 * time.Second

// sends is how many times the M-SEARCH is repeated, since UDP may drop it
const sends = 2

// Response is one device's answer to a search
type Response struct {
	Location     string
	USN          string
	Server       string
	SearchTarget string
}

// Search multicasts an M-SEARCH from localIP and collects the answers.
// wait must be at least one second.
func Search(ctx context.Context, localIP, target string, wait time.Duration) (result []Response, err error) {
	if target == "" {
		target = DefaultTarget
	}

	client, err := httpu.NewHTTPUClientAddr(localIP)
	if err != nil {
		return nil, fmt.Errorf("failed to bind search socket on %s: %w", localIP, err)
	}
	defer func() {
		err = multierr.Append(err, client.Close())
	}()

	searchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	logging.Debug("Sending M-SEARCH",
		zap.String("local_ip", localIP),
		zap.String("target", target),
		zap.Duration("wait", wait),
	)

	responses, err := ssdp.RawSearch(searchCtx, client, target, sends)
	if err != nil {
		return nil, fmt.Errorf("SSDP search failed: %w", err)
	}

	return collect(responses), nil
}

// collect converts raw responses, dropping duplicates by USN and sorting
// by location
func collect(responses []*http.Response) []Response {
	seen := make(map[string]bool)
	var out []Response

	for _, resp := range responses {
		r := Response{
			Location:     resp.Header.Get("Location"),
			USN:          resp.Header.Get("USN"),
			Server:       resp.Header.Get("Server"),
			SearchTarget: resp.Header.Get("ST"),
		}

		key := r.USN
		if key == "" {
			key = r.Location
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].USN < out[j].USN
	})

	return out
}
