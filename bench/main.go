package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Driver de concorrência: dispara criações de pedido simultâneas contra o
// mesmo produto e confere que o serviço nunca vende além do estoque. Pedidos
// aceitos além do estoque aparecem como sucesso a mais do que o esperado.

type orderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Items []orderItem `json:"items"`
	Notes string      `json:"notes,omitempty"`
}

func main() {
	baseURL := flag.String("base-url", envOr("BASE_URL", "http://localhost:8080"), "orders service base URL")
	token := flag.String("token", envOr("TOKEN", ""), "bearer token for the API")
	productID := flag.String("product", envOr("PRODUCT_ID", ""), "product id to contend on")
	requests := flag.Int("requests", 50, "total createOrder requests")
	concurrency := flag.Int("concurrency", 10, "concurrent workers")
	quantity := flag.Int("quantity", 1, "quantity per order")
	flag.Parse()

	if *productID == "" {
		log.Fatal("missing -product (or PRODUCT_ID)")
	}

	client := resty.New().
		SetBaseURL(*baseURL).
		SetAuthToken(*token).
		SetTimeout(30 * time.Second)

	var mu sync.Mutex
	statusCounts := map[int]int{}
	var firstError string

	jobs := make(chan int)
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				resp, err := client.R().
					SetHeader("Content-Type", "application/json").
					SetBody(createOrderRequest{
						Items: []orderItem{{ProductID: *productID, Quantity: *quantity}},
						Notes: "bench",
					}).
					Post("/api/orders")

				mu.Lock()
				if err != nil {
					statusCounts[-1]++
					if firstError == "" {
						firstError = err.Error()
					}
				} else {
					statusCounts[resp.StatusCode()]++
					if firstError == "" && resp.StatusCode() >= 500 {
						firstError = resp.String()
					}
				}
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < *requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	created := statusCounts[http.StatusCreated]
	conflicts := statusCounts[http.StatusConflict]

	fmt.Printf("requests=%d concurrency=%d quantity=%d elapsed=%s\n", *requests, *concurrency, *quantity, elapsed)
	fmt.Printf("created=%d insufficient_stock=%d\n", created, conflicts)
	for code, count := range statusCounts {
		if code != http.StatusCreated && code != http.StatusConflict {
			fmt.Printf("status=%d count=%d\n", code, count)
		}
	}
	if firstError != "" {
		fmt.Printf("first_error=%s\n", firstError)
	}
	unitsSold := created * (*quantity)
	fmt.Printf("units_sold=%d (must not exceed the product stock before the run)\n", unitsSold)
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
