package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[http] failed to encode response: %v", err)
	}
}

// RespondError 发送 FastAPI 风格的错误响应 {"detail": ...}。
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"detail": message})
}

// RespondValidation 发送 422 字段校验错误，格式与 FastAPI 一致。
func RespondValidation(w http.ResponseWriter, fields map[string]string) {
	type item struct {
		Loc  []string `json:"loc"`
		Msg  string   `json:"msg"`
		Type string   `json:"type"`
	}

	details := make([]item, 0, len(fields))
	for _, name := range []string{"login", "username", "email", "password", "message"} {
		if msg, ok := fields[name]; ok {
			details = append(details, item{Loc: []string{"body", name}, Msg: msg, Type: "value_error"})
		}
	}
	RespondJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": details})
}
