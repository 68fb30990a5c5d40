package records

import "github.com/forestrie/go-dwn/dwn"

// Subscribe implements RecordsSubscribe: an
// in-process Subscription of tenant's Records events, layered on
// eventlog.Subscribe and filtered to interface=Records so a Records
// listener never sees Protocols/Permissions/Messages traffic.
func (h *Handler) Subscribe(tenant string) *dwn.Subscription {
	underlying := h.log.Subscribe(tenant)
	out := make(chan dwn.Event, cap(underlying.Events))

	go func() {
		defer close(out)
		for evt := range underlying.Events {
			if evt.IndexedAttributes[AttrInterface] != "Records" {
				continue
			}
			select {
			case out <- evt:
			default:
			}
		}
	}()

	return &dwn.Subscription{
		Events: out,
		Close:  underlying.Close,
	}
}
