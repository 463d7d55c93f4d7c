package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/swiftdish/order-service/internal/entities"
	"github.com/swiftdish/order-service/internal/feed"
	"github.com/swiftdish/order-service/pkg/utils"
)

type FeedSubscriber interface {
	Subscribe(ctx context.Context, f feed.Filter) (*feed.Subscription, error)
}

// Feed streams order change events over SSE. The client first receives a
// snapshot of every matching order, then live events. A resync event means
// the stream may have gaps; the handler refetches and resends the snapshot.
// @Summary      Subscribe to the order change feed
// @Tags         feed
// @Param        order_id  query  string  false  "Watch one order"
// @Param        role      query  string  false  "Party role, with party_id"
// @Param        party_id  query  string  false  "Watch a party's orders"
// @Param        status    query  string  false  "Comma-separated status filter"
// @Produce      text/event-stream
// @Success      200
// @Failure      400  {object}  utils.ErrorResponse
// @Router       /feed [get]
func (h *HTTPHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	filter, err := feedFilter(r)
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub, err := h.feed.Subscribe(ctx, filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := h.sendSnapshot(ctx, w, sub); err != nil {
		h.logger.Error("snapshot failed", "error", err)
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if event.Resync {
				if err := h.sendSnapshot(ctx, w, sub); err != nil {
					h.logger.Error("resync snapshot failed", "error", err)
					return
				}
				flusher.Flush()
				continue
			}
			if err := writeSSE(w, "event", event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *HTTPHandler) sendSnapshot(ctx context.Context, w http.ResponseWriter, sub *feed.Subscription) error {
	orders, err := sub.Snapshot(ctx)
	if err != nil {
		return err
	}
	return writeSSE(w, "snapshot", OrdersToJSON(orders))
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func feedFilter(r *http.Request) (feed.Filter, error) {
	q := r.URL.Query()

	if orderID := q.Get("order_id"); orderID != "" {
		return feed.Filter{OrderID: orderID}, nil
	}

	partyID := q.Get("party_id")
	if partyID == "" {
		return feed.Filter{}, fmt.Errorf("%w: order_id or party_id is required", entities.ErrValidation)
	}
	role, err := entities.ParseRole(q.Get("role"))
	if err != nil {
		return feed.Filter{}, err
	}

	var statuses []entities.Status
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status, err := entities.ParseStatus(strings.TrimSpace(s))
			if err != nil {
				return feed.Filter{}, err
			}
			statuses = append(statuses, status)
		}
	}

	return feed.Filter{Role: role, PartyID: partyID, Statuses: statuses}, nil
}
