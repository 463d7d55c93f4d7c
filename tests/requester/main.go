// Dev tool: repeatedly picks a ready order and fires a burst of
// concurrent accepts from different drivers. Exactly one 200 and a pile
// of 409s per order means the arbitration holds under fire.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

const (
	baseURL = "http://localhost:8080"
	racers  = 10
)

type order struct {
	ID          string `json:"id"`
	OrderNumber int64  `json:"order_number"`
}

func main() {
	for {
		orders, err := available()
		if err != nil {
			fmt.Println("pool fetch failed:", err)
			time.Sleep(time.Second)
			continue
		}
		if len(orders) == 0 {
			time.Sleep(500 * time.Millisecond)
			continue
		}

		target := orders[rand.Intn(len(orders))]
		race(target)
	}
}

func available() ([]order, error) {
	resp, err := http.Get(baseURL + "/orders/available")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var orders []order
	err = json.NewDecoder(resp.Body).Decode(&orders)
	return orders, err
}

func race(target order) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins, conflicts, other int

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(driver int) {
			defer wg.Done()
			status, err := accept(target.ID, fmt.Sprintf("drv-%d", driver))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				fmt.Println("accept failed:", err)
				other++
			case status == http.StatusOK:
				wins++
			case status == http.StatusConflict:
				conflicts++
			default:
				other++
			}
		}(i)
	}
	wg.Wait()

	fmt.Printf("order #%d: %d won, %d conflicted, %d other\n",
		target.OrderNumber, wins, conflicts, other)
	if wins != 1 {
		fmt.Println("!!! arbitration violated !!!")
	}
}

func accept(orderID, driverID string) (int, error) {
	body, _ := json.Marshal(map[string]string{"driver_id": driverID})
	resp, err := http.Post(
		baseURL+"/orders/"+orderID+"/accept",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
