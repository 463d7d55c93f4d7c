package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/swiftdish/order-service/internal/entities"
	"github.com/swiftdish/order-service/internal/service"
	"github.com/swiftdish/order-service/pkg/utils"
)

type Ledger interface {
	Create(ctx context.Context, cmd service.CreateOrderCommand) (entities.Order, error)
	Transition(ctx context.Context, orderID string, target entities.Status, actor entities.ActorRole) error
	Cancel(ctx context.Context, orderID string, actor entities.ActorRole) error
	GetOrder(ctx context.Context, orderID string) (entities.Order, error)
	ListOrders(ctx context.Context, role entities.ActorRole, partyID string, statuses []entities.Status) ([]entities.Order, error)
}

type Broker interface {
	ListAvailable(ctx context.Context, near *entities.GeoPoint) ([]entities.Order, error)
	Offer(ctx context.Context, orderID, driverID string) (entities.Assignment, error)
	Accept(ctx context.Context, orderID, driverID string) (entities.Order, error)
	Reject(ctx context.Context, assignmentID, driverID string) error
	Assignments(ctx context.Context, orderID string) ([]entities.Assignment, error)
}

type Notifications interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]entities.Notification, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	ledger   Ledger
	broker   Broker
	notify   Notifications
	feed     FeedSubscriber
}

func NewHTTPHandler(logger *slog.Logger, ledger Ledger, broker Broker, notify Notifications, feed FeedSubscriber) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		ledger:   ledger,
		broker:   broker,
		notify:   notify,
		feed:     feed,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders", h.ListOrders)
	r.Get("/orders/available", h.ListAvailable)
	r.Get("/orders/{order_id}", h.GetOrder)
	r.Post("/orders/{order_id}/transition", h.TransitionOrder)
	r.Post("/orders/{order_id}/cancel", h.CancelOrder)
	r.Post("/orders/{order_id}/offers", h.OfferOrder)
	r.Post("/orders/{order_id}/accept", h.AcceptOrder)
	r.Get("/orders/{order_id}/assignments", h.ListAssignments)
	r.Post("/assignments/{assignment_id}/reject", h.RejectAssignment)
	r.Get("/users/{user_id}/notifications", h.ListNotifications)
	r.Get("/feed", h.Feed)
}

// CreateOrder opens a new order. Totals are priced once at creation.
// @Summary      Create an order
// @Tags         orders
// @Accept       json
// @Param        body  body      CreateOrderRequest  true  "Order payload"
// @Success      201  {object}  Order
// @Failure      400  {object}  utils.ValidationErrorResponse
// @Failure      503  {object}  utils.ErrorResponse
// @Router       /orders [post]
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	method, err := entities.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.ledger.Create(ctx, service.CreateOrderCommand{
		CustomerID:          req.CustomerID,
		MerchantID:          req.MerchantID,
		Items:               ItemsToEntities(req.Items),
		PaymentMethod:       method,
		DeliveryAddress:     req.DeliveryAddress,
		DeliveryLocation:    entities.GeoPoint{Lat: req.DeliveryLocation.Lat, Lng: req.DeliveryLocation.Lng},
		MerchantLocation:    entities.GeoPoint{Lat: req.MerchantLocation.Lat, Lng: req.MerchantLocation.Lng},
		DistanceKM:          req.DistanceKM,
		PromoCode:           req.PromoCode,
		SpecialInstructions: req.SpecialInstructions,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusCreated)
}

// GetOrder returns one order by id.
// @Summary      Get order by ID
// @Tags         orders
// @Param        order_id  path      string  true  "Order ID"
// @Success      200  {object}  Order
// @Failure      404  {object}  utils.ErrorResponse
// @Router       /orders/{order_id} [get]
func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	if err := h.validate.Var(orderID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.ledger.GetOrder(ctx, orderID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// ListOrders returns a party's orders, optionally filtered by status.
// @Summary      List orders for a party
// @Tags         orders
// @Param        role      query     string  true   "customer, merchant or driver"
// @Param        party_id  query     string  true   "Party ID"
// @Param        status    query     string  false  "Comma-separated statuses"
// @Success      200  {array}  Order
// @Failure      400  {object}  utils.ErrorResponse
// @Router       /orders [get]
func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	role, err := entities.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	partyID := r.URL.Query().Get("party_id")
	if partyID == "" {
		utils.WriteError(w, "party_id is required", http.StatusBadRequest)
		return
	}

	var statuses []entities.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status, err := entities.ParseStatus(strings.TrimSpace(s))
			if err != nil {
				utils.WriteError(w, err.Error(), http.StatusBadRequest)
				return
			}
			statuses = append(statuses, status)
		}
	}

	orders, err := h.ledger.ListOrders(ctx, role, partyID, statuses)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, OrdersToJSON(orders), http.StatusOK)
}

// TransitionOrder advances an order to the requested status.
// @Summary      Transition an order
// @Tags         orders
// @Accept       json
// @Param        order_id  path      string             true  "Order ID"
// @Param        body      body      TransitionRequest  true  "Target status and actor"
// @Success      200  {object}  Order
// @Failure      404  {object}  utils.ErrorResponse
// @Failure      409  {object}  utils.ErrorResponse
// @Router       /orders/{order_id}/transition [post]
func (h *HTTPHandler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req TransitionRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	target, err := entities.ParseStatus(req.TargetStatus)
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}
	actor, err := entities.ParseRole(req.ActorRole)
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.ledger.Transition(ctx, orderID, target, actor); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	order, err := h.ledger.GetOrder(ctx, orderID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// CancelOrder cancels an order from any non-terminal status.
// @Summary      Cancel an order
// @Tags         orders
// @Accept       json
// @Param        order_id  path      string         true  "Order ID"
// @Param        body      body      CancelRequest  true  "Acting role"
// @Success      200  {object}  Order
// @Failure      404  {object}  utils.ErrorResponse
// @Failure      409  {object}  utils.ErrorResponse
// @Router       /orders/{order_id}/cancel [post]
func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req CancelRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	actor, err := entities.ParseRole(req.ActorRole)
	if err != nil {
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.ledger.Cancel(ctx, orderID, actor); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	order, err := h.ledger.GetOrder(ctx, orderID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// ListAvailable returns ready, unassigned orders, optionally near a point.
// @Summary      List orders open for pickup
// @Tags         assignments
// @Param        lat  query  number  false  "Driver latitude"
// @Param        lng  query  number  false  "Driver longitude"
// @Success      200  {array}  Order
// @Router       /orders/available [get]
func (h *HTTPHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var near *entities.GeoPoint
	latRaw, lngRaw := r.URL.Query().Get("lat"), r.URL.Query().Get("lng")
	if latRaw != "" && lngRaw != "" {
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil {
			utils.WriteError(w, "invalid lat", http.StatusBadRequest)
			return
		}
		lng, err := strconv.ParseFloat(lngRaw, 64)
		if err != nil {
			utils.WriteError(w, "invalid lng", http.StatusBadRequest)
			return
		}
		near = &entities.GeoPoint{Lat: lat, Lng: lng}
	}

	orders, err := h.broker.ListAvailable(ctx, near)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, OrdersToJSON(orders), http.StatusOK)
}

// OfferOrder records a pending offer of a ready order to a driver.
// @Summary      Offer an order to a driver
// @Tags         assignments
// @Accept       json
// @Param        order_id  path      string         true  "Order ID"
// @Param        body      body      DriverRequest  true  "Driver"
// @Success      201  {object}  Assignment
// @Failure      404  {object}  utils.ErrorResponse
// @Failure      409  {object}  utils.ErrorResponse
// @Router       /orders/{order_id}/offers [post]
func (h *HTTPHandler) OfferOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req DriverRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	assignment, err := h.broker.Offer(ctx, orderID, req.DriverID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, AssignmentEntityToJSON(assignment), http.StatusCreated)
}

// AcceptOrder claims a ready order for a driver. First accept wins.
// @Summary      Accept an order
// @Tags         assignments
// @Accept       json
// @Param        order_id  path      string         true  "Order ID"
// @Param        body      body      DriverRequest  true  "Driver"
// @Success      200  {object}  Order
// @Failure      404  {object}  utils.ErrorResponse
// @Failure      409  {object}  utils.ErrorResponse "Order already taken"
// @Router       /orders/{order_id}/accept [post]
func (h *HTTPHandler) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req DriverRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.broker.Accept(ctx, orderID, req.DriverID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// RejectAssignment declines a pending offer. The order stays in the pool.
// @Summary      Reject an assignment
// @Tags         assignments
// @Accept       json
// @Param        assignment_id  path      string         true  "Assignment ID"
// @Param        body           body      DriverRequest  true  "Driver"
// @Success      204  "No Content"
// @Failure      404  {object}  utils.ErrorResponse
// @Router       /assignments/{assignment_id}/reject [post]
func (h *HTTPHandler) RejectAssignment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assignmentID := chi.URLParam(r, "assignment_id")

	var req DriverRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	if err := h.broker.Reject(ctx, assignmentID, req.DriverID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAssignments returns the offer history for one order.
// @Summary      List assignments of an order
// @Tags         assignments
// @Param        order_id  path  string  true  "Order ID"
// @Success      200  {array}  Assignment
// @Failure      404  {object}  utils.ErrorResponse
// @Router       /orders/{order_id}/assignments [get]
func (h *HTTPHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	if err := h.validate.Var(orderID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	assignments, err := h.broker.Assignments(ctx, orderID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]Assignment, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, AssignmentEntityToJSON(a))
	}
	utils.WriteJSON(w, out, http.StatusOK)
}

// ListNotifications returns a user's latest notifications.
// @Summary      List notifications for a user
// @Tags         notifications
// @Param        user_id  path   string  true   "User ID"
// @Param        limit    query  int     false  "Max rows, default 50"
// @Success      200  {array}  Notification
// @Router       /users/{user_id}/notifications [get]
func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	if err := h.validate.Var(userID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.WriteError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	notifications, err := h.notify.ListByUser(ctx, userID, limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]Notification, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, NotificationEntityToJSON(n))
	}
	utils.WriteJSON(w, out, http.StatusOK)
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entities.ErrOrderNotFound):
		utils.WriteError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrAssignmentNotFound):
		utils.WriteError(w, "assignment not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrIllegalTransition):
		utils.WriteError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, entities.ErrAlreadyTaken):
		utils.WriteError(w, "order already taken", http.StatusConflict)
	case errors.Is(err, entities.ErrValidation), errors.Is(err, entities.ErrInvalidAmount):
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, entities.ErrStoreUnavailable):
		h.logger.Error("storage failure", "path", r.URL.Path, "error", err)
		utils.WriteError(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("unexpected error", "path", r.URL.Path, "error", err)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
