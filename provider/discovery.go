package provider

import (
	"encoding/json"
	"time"

	"github.com/keepkey-community/wallet-gateway/types"
)

// Announce broadcasts the provider's identity so pages can discover it
// without probing a well-known global. Re-sent on every discovery request.
func (p *Provider) Announce() {
	p.c.announce()
}

func (c *core) announce() {
	payload, err := json.Marshal(&c.info)
	if err != nil {
		c.log.Errorf("marshal provider info: %v", err)
		return
	}
	c.transport.Post(&types.Envelope{
		Source:    types.SourcePage,
		Type:      types.MsgAnnounceProvider,
		Result:    payload,
		Timestamp: time.Now().UnixMilli(),
	})
}
