package handler

import (
	"net/http"
	"time"
)

// healthResponse はヘルスチェックのレスポンスボディ。
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthCheck はGET /healthを処理する。
// ロードバランサーとコンテナランタイムの死活監視用で、依存先には触れない。
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}
