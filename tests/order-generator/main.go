// Dev tool: floods the API with random orders and walks each one to
// ready, leaving a pool for drivers to race over.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

const baseURL = "http://localhost:8080"

type lineItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Qty       int    `json:"qty"`
}

type geoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type createOrderRequest struct {
	CustomerID       string     `json:"customer_id"`
	MerchantID       string     `json:"merchant_id"`
	Items            []lineItem `json:"items"`
	PaymentMethod    string     `json:"payment_method"`
	DeliveryAddress  string     `json:"delivery_address"`
	DeliveryLocation geoPoint   `json:"delivery_location"`
	MerchantLocation geoPoint   `json:"merchant_location"`
}

type orderResponse struct {
	ID          string `json:"id"`
	OrderNumber int64  `json:"order_number"`
	Status      string `json:"status"`
}

var (
	dishes  = []string{"Masala Dosa", "Veg Thali", "Paneer Tikka", "Chicken Biryani", "Momos", "Filter Coffee"}
	methods = []string{"card", "wallet", "cash_on_delivery"}
)

func randomOrder() createOrderRequest {
	items := make([]lineItem, 0, 1+rand.Intn(3))
	for i := 0; i <= rand.Intn(3); i++ {
		items = append(items, lineItem{
			ID:        fmt.Sprintf("item-%d", rand.Intn(1000)),
			Name:      dishes[rand.Intn(len(dishes))],
			UnitPrice: int64(5000 + rand.Intn(30000)),
			Qty:       1 + rand.Intn(3),
		})
	}
	return createOrderRequest{
		CustomerID:      fmt.Sprintf("cust-%d", rand.Intn(100)),
		MerchantID:      fmt.Sprintf("merch-%d", rand.Intn(20)),
		Items:           items,
		PaymentMethod:   methods[rand.Intn(len(methods))],
		DeliveryAddress: fmt.Sprintf("%d MG Road", 1+rand.Intn(200)),
		DeliveryLocation: geoPoint{
			Lat: 12.9 + rand.Float64()*0.2,
			Lng: 77.5 + rand.Float64()*0.2,
		},
		MerchantLocation: geoPoint{
			Lat: 12.9 + rand.Float64()*0.2,
			Lng: 77.5 + rand.Float64()*0.2,
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("generator stopped")
			return
		case <-ticker.C:
			if err := createAndAdvance(ctx, client); err != nil {
				log.Println("failed:", err)
			}
		}
	}
}

func createAndAdvance(ctx context.Context, client *http.Client) error {
	order, err := createOrder(ctx, client)
	if err != nil {
		return err
	}
	log.Printf("created order #%d (%s)", order.OrderNumber, order.ID)

	// occasionally cancel instead of cooking, to exercise both paths
	if rand.Intn(10) == 0 {
		return post(ctx, client, fmt.Sprintf("/orders/%s/cancel", order.ID),
			map[string]string{"actor_role": "customer"})
	}

	for _, status := range []string{"confirmed", "preparing", "ready"} {
		time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)
		err := post(ctx, client, fmt.Sprintf("/orders/%s/transition", order.ID),
			map[string]string{"target_status": status, "actor_role": "merchant"})
		if err != nil {
			return err
		}
	}
	log.Printf("order #%d is ready for pickup", order.OrderNumber)
	return nil
}

func createOrder(ctx context.Context, client *http.Client) (orderResponse, error) {
	body, err := json.Marshal(randomOrder())
	if err != nil {
		return orderResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return orderResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return orderResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return orderResponse{}, fmt.Errorf("create returned %s", resp.Status)
	}

	var order orderResponse
	err = json.NewDecoder(resp.Body).Decode(&order)
	return order, err
}

func post(ctx context.Context, client *http.Client, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	return nil
}
