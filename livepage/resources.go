package livepage

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceAliases maps plural config spellings to CDP resource types.
var resourceAliases = map[string]proto.NetworkResourceType{
	"images":      proto.NetworkResourceTypeImage,
	"fonts":       proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
}

// blocklist is a set of lower-cased CDP resource types.
type blocklist map[string]struct{}

// newBlocklist accepts config aliases and raw CDP types in any case.
// Unknown names are kept verbatim and simply never match.
func newBlocklist(names []string) blocklist {
	b := make(blocklist, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if typ, ok := resourceAliases[n]; ok {
			n = strings.ToLower(string(typ))
		}
		if n != "" {
			b[n] = struct{}{}
		}
	}
	return b
}

func (b blocklist) blocks(typ proto.NetworkResourceType) bool {
	_, ok := b[strings.ToLower(string(typ))]
	return ok
}

// blockResources hijacks page requests and fails those in the blocklist
// with BlockedByClient. A nil router means nothing is blocked.
func blockResources(page *rod.Page, names []string) *rod.HijackRouter {
	b := newBlocklist(names)
	if len(b) == 0 {
		return nil
	}
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if b.blocks(h.Request.Type()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
