package cloudflare

import (
	"context"
	"fmt"

	"github.com/database64128/dyns-go/provider"
)

// Keeper interacts with Cloudflare's API to keep the records of one zone
// pointed at the source address.
//
// Keeper holds no record state: record IDs are looked up again on every sync,
// because the provider may reassign them.
//
// Keeper implements [provider.RecordKeeper].
type Keeper struct {
	zoneID string
	client *Client
}

// NewKeeper creates a new [Keeper] for the zone with the given ID.
func NewKeeper(zoneID string, client *Client) *Keeper {
	return &Keeper{
		zoneID: zoneID,
		client: client,
	}
}

var _ provider.RecordKeeper = (*Keeper)(nil)

// SyncRecord resolves the ID of the named record, then updates it
// to the given content and proxy flag.
//
// SyncRecord implements [provider.RecordKeeper.SyncRecord].
func (k *Keeper) SyncRecord(ctx context.Context, name string, proxied bool, content string) error {
	recordID, err := k.client.ResolveRecordID(ctx, k.zoneID, name)
	if err != nil {
		return fmt.Errorf("failed to get DNS record ID: %w", err)
	}

	if err = k.client.UpdateDNSRecord(ctx, k.zoneID, recordID, &UpdateDNSRecordRequest{
		Content: content,
		Proxy:   proxied,
	}); err != nil {
		return fmt.Errorf("failed to update DNS record %q: %w", recordID, err)
	}

	return nil
}
